package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/agrihub-cart/internal/domain/cart"
)

var hundred = decimal.NewFromInt(100)

// Apply computes the discount the rule grants on items. The amount never
// exceeds the subtotal or MaxDiscount (when positive) and is rounded to two
// decimal places.
func (r *Rule) Apply(items []cart.LineItem) (Discount, error) {
	qty, subtotal := totals(items)
	if r.MinItems > 0 && qty < r.MinItems {
		return Discount{}, ErrInvalidCoupon
	}
	if r.MinAmount.IsPositive() && subtotal.LessThan(r.MinAmount) {
		return Discount{}, ErrInvalidCoupon
	}

	var amount decimal.Decimal
	switch r.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(r.Value).Div(hundred)
	case DiscountFixed:
		amount = r.Value
	case DiscountFreeLowest:
		amount = lowestUnitPrice(items)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", r.DiscountType)
	}

	if r.MaxDiscount.IsPositive() {
		amount = decimal.Min(amount, r.MaxDiscount)
	}
	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Code:        r.Code,
		Amount:      amount.Round(2),
		Description: r.Description,
	}, nil
}

// totals returns the total quantity and subtotal of items.
func totals(items []cart.LineItem) (int, decimal.Decimal) {
	qty := 0
	sum := decimal.Zero
	for _, li := range items {
		qty += li.Quantity
		sum = sum.Add(li.Subtotal())
	}
	return qty, sum
}

// lowestUnitPrice returns the cheapest unit price, or zero for no items.
func lowestUnitPrice(items []cart.LineItem) decimal.Decimal {
	if len(items) == 0 {
		return decimal.Zero
	}
	lowest := items[0].Product.Price
	for _, li := range items[1:] {
		if li.Product.Price.LessThan(lowest) {
			lowest = li.Product.Price
		}
	}
	return lowest
}
