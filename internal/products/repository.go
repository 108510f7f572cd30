package products

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/catalog/internal/shared"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Repository persists products.
type Repository interface {
	CodeLookup
	List(ctx context.Context, filters ListFilters) ([]Product, error)
	Count(ctx context.Context, filters ListFilters) (int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, attrs Attributes) (Product, error)
	Update(ctx context.Context, id int64, attrs Attributes) (Product, error)
	Delete(ctx context.Context, id int64) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository returns a pgx backed Repository.
func NewRepository(db dbtx) Repository {
	return &repository{db: db}
}

const productColumns = `id, code, name, quantity, price, description, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Product, error) {
	where, args := filterClause(filters)
	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)

	if filters.PerPage > 0 {
		offset := shared.NewPagination(filters.Page, filters.PerPage, 0).Offset()
		args = append(args, filters.PerPage, offset)
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("products: list: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("products: scan: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repository) Count(ctx context.Context, filters ListFilters) (int, error) {
	where, args := filterClause(filters)
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("products: count: %w", err)
	}
	return total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, fmt.Errorf("products: get %d: %w", id, err)
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, attrs Attributes) (Product, error) {
	now := time.Now().UTC()
	row := r.db.QueryRow(ctx,
		`INSERT INTO products (code, name, quantity, price, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING `+productColumns,
		attrs.Code, attrs.Name, attrs.Quantity, attrs.Price, attrs.Description, now)
	p, err := scanProduct(row)
	if err != nil {
		return Product{}, mapWriteError("create", err)
	}
	return p, nil
}

func (r *repository) Update(ctx context.Context, id int64, attrs Attributes) (Product, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE products
		 SET code = $1, name = $2, quantity = $3, price = $4, description = $5, updated_at = $6
		 WHERE id = $7
		 RETURNING `+productColumns,
		attrs.Code, attrs.Name, attrs.Quantity, attrs.Price, attrs.Description, time.Now().UTC(), id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, mapWriteError("update", err)
	}
	return p, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("products: delete %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ExistsWithCode(ctx context.Context, code string, excludingID *int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE code = $1 AND ($2::bigint IS NULL OR id <> $2))`,
		code, excludingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("products: code exists: %w", err)
	}
	return exists, nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Quantity, &p.Price, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return shared.ErrDuplicate
	}
	return fmt.Errorf("products: %s: %w", op, err)
}

func filterClause(filters ListFilters) (string, []interface{}) {
	if filters.Search == "" {
		return "", nil
	}
	return ` WHERE (name ILIKE $1 ESCAPE '\' OR code ILIKE $1 ESCAPE '\')`, []interface{}{"%" + likeEscaper.Replace(filters.Search) + "%"}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir + ", id " + dir
	case "name":
		return "name " + dir + ", id " + dir
	case "quantity":
		return "quantity " + dir + ", id " + dir
	case "price":
		return "price " + dir + ", id " + dir
	default:
		return "created_at DESC, id DESC"
	}
}
