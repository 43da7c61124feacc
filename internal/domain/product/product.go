package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog listing offered on the marketplace. Localized
// fields carry the Telugu variant shown next to the English one.
type Product struct {
	ID          string
	Name        string
	NameLocal   string
	Price       decimal.Decimal
	Unit        string
	Category    string
	Origin      string
	OriginLocal string
	Image       string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
