package promo

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/agrihub-cart/internal/domain/coupon"
)

// campaigns holds the discount of promo codes tied to a known campaign.
var campaigns = map[string]coupon.Rule{
	"SANKRANTI": {
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(15),
		MaxDiscount:  decimal.NewFromInt(500),
		Description:  "Sankranti harvest festival: 15% off",
	},
	"UGADI2026": {
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(12),
		Description:  "Ugadi new year: 12% off",
	},
	"KISANBUY2": {
		DiscountType: coupon.DiscountFreeLowest,
		MinItems:     2,
		Description:  "Buy 2 or more, cheapest item free",
	},
	"BULKMANDI": {
		DiscountType: coupon.DiscountFixed,
		Value:        decimal.NewFromInt(100),
		MinAmount:    decimal.NewFromInt(1000),
		Description:  "₹100 off orders above ₹1000",
	},
	"FARMFRESH": {
		DiscountType: coupon.DiscountPercentage,
		Value:        decimal.NewFromInt(5),
		Description:  "Farm fresh: 5% off",
	},
}

// RuleFor returns the coupon rule stored for a shared promo code. Codes
// without a campaign get 10% off capped at ₹250.
func RuleFor(code string) coupon.Rule {
	rule, ok := campaigns[code]
	if !ok {
		rule = coupon.Rule{
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			MaxDiscount:  decimal.NewFromInt(250),
			Description:  "Partner promo: 10% off",
		}
	}
	rule.Code = code
	return rule
}
