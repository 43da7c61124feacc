package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a checked-out cart, priced at checkout time.
type Order struct {
	ID         string
	Items      []Item
	Subtotal   decimal.Decimal
	Discounts  decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
	CreatedAt  time.Time
}

// Item is one priced line of an order.
type Item struct {
	ProductID string
	Name      string
	Unit      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Repository defines persistence operations for orders.
//
// Create stores the order and, when CouponCode is set, records one use of
// that coupon atomically with it. An exhausted coupon fails the whole order
// with coupon.ErrCouponUsageLimitReached.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
