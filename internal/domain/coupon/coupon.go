package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/agrihub-cart/internal/domain/cart"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the cart subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed takes a fixed amount off, capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
	// DiscountFreeLowest makes one unit of the cheapest product free.
	DiscountFreeLowest DiscountType = "free_lowest"
)

var (
	// ErrInvalidCoupon is returned for unknown codes and for carts that do
	// not meet the coupon's minimum item count or amount.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned outside the coupon's validity window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned once MaxUses is exhausted.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
)

// Rule is a stored coupon definition.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	MinItems     int
	MinAmount    decimal.Decimal
	MaxDiscount  decimal.Decimal
	Description  string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	MaxUses      int
	Uses         int
}

// Active reports whether now falls inside the rule's validity window.
func (r *Rule) Active(now time.Time) bool {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && now.After(*r.ValidUntil) {
		return false
	}
	return true
}

// Exhausted reports whether the rule has no uses left.
func (r *Rule) Exhausted() bool {
	return r.MaxUses > 0 && r.Uses >= r.MaxUses
}

// Discount is the computed reduction for a cart.
type Discount struct {
	// Code is the canonical code of the rule that granted the discount.
	Code        string
	Amount      decimal.Decimal
	Description string
}

// Repository provides lookup of coupon rules. Uses are recorded together
// with the order that redeems the coupon.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
}

// Validator checks a code against cart contents and returns the discount.
// It records nothing.
type Validator interface {
	Validate(ctx context.Context, code string, items []cart.LineItem) (*Discount, error)
}
