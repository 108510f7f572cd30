package products

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/catalog/internal/shared"
)

// Page is one page of the product listing.
type Page struct {
	Items      []Product
	Pagination shared.Pagination
}

// WriteRecorder observes the outcome of product writes.
type WriteRecorder interface {
	RecordProductWrite(op, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordProductWrite(string, string) {}

// Service coordinates validation and persistence of products.
type Service struct {
	repo      Repository
	validator *Validator
	perPage   int
	recorder  WriteRecorder
}

// NewService wires a Service; perPage is the listing page size.
func NewService(repo Repository, perPage int) *Service {
	return &Service{
		repo:      repo,
		validator: NewValidator(repo),
		perPage:   perPage,
		recorder:  nopRecorder{},
	}
}

// WithRecorder reports write outcomes to r.
func (s *Service) WithRecorder(r WriteRecorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// MaxPerPage caps the page size a caller may request.
const MaxPerPage = 100

// List returns the requested page together with pagination metadata.
func (s *Service) List(ctx context.Context, filters ListFilters) (Page, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PerPage < 1 {
		filters.PerPage = s.perPage
	}
	if filters.PerPage > MaxPerPage {
		filters.PerPage = MaxPerPage
	}

	var (
		items []Product
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.List(gctx, filters)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, filters)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}
	return Page{Items: items, Pagination: shared.NewPagination(filters.Page, filters.PerPage, total)}, nil
}

// Get loads a product or returns shared.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// Create validates fields and stores a new product.
func (s *Service) Create(ctx context.Context, fields Fields) (created Product, err error) {
	defer func() { s.record("create", err) }()

	outcome, err := s.validator.ValidateForCreate(ctx, fields)
	if err != nil {
		return Product{}, err
	}
	if !outcome.Accepted() {
		return Product{}, &ValidationError{Errors: outcome.Errors}
	}
	created, err = s.repo.Create(ctx, outcome.Attributes)
	if err != nil {
		return Product{}, codeTaken(err)
	}
	return created, nil
}

// Update validates fields against product id and stores them. A missing
// product yields shared.ErrNotFound before any validation runs.
func (s *Service) Update(ctx context.Context, id int64, fields Fields) (updated Product, err error) {
	defer func() { s.record("update", err) }()

	if _, err := s.Get(ctx, id); err != nil {
		return Product{}, err
	}
	outcome, err := s.validator.ValidateForUpdate(ctx, fields, id)
	if err != nil {
		return Product{}, err
	}
	if !outcome.Accepted() {
		return Product{}, &ValidationError{Errors: outcome.Errors}
	}
	updated, err = s.repo.Update(ctx, id, outcome.Attributes)
	if err != nil {
		return Product{}, codeTaken(err)
	}
	return updated, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer func() { s.record("delete", err) }()

	if id <= 0 {
		return shared.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) record(op string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, shared.ErrValidation):
		outcome = "rejected"
	case errors.Is(err, shared.ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	s.recorder.RecordProductWrite(op, outcome)
}

// codeTaken reports a lost race on the code constraint as a validation failure.
func codeTaken(err error) error {
	if errors.Is(err, shared.ErrDuplicate) {
		errs := make(FieldErrors)
		errs.Add(FieldCode, ReasonNotUnique, "The code has already been taken.")
		return &ValidationError{Errors: errs}
	}
	return err
}
