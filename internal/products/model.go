package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a persisted catalog record.
type Product struct {
	ID          int64           `json:"id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Description *string         `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ListFilters narrows and orders the product listing.
type ListFilters struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
}
