package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/agrihub-cart/internal/domain/cart"
)

var _ Validator = (*RepoValidator)(nil)

// RepoValidator prices coupons stored in a Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by repo.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate computes the discount code grants on items.
func (v *RepoValidator) Validate(ctx context.Context, code string, items []cart.LineItem) (*Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	rule, err := v.repo.FindByCode(ctx, code)
	switch {
	case errors.Is(err, ErrInvalidCoupon):
		return nil, ErrInvalidCoupon
	case err != nil:
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := v.redeemable(rule); err != nil {
		return nil, err
	}
	d, err := rule.Apply(items)
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Debug("Coupon applied",
		zap.String("code", rule.Code),
		zap.String("type", string(rule.DiscountType)),
		zap.String("amount", d.Amount.StringFixed(2)),
	)
	return &d, nil
}

func (v *RepoValidator) redeemable(rule *Rule) error {
	if !rule.Active(v.now()) {
		return ErrCouponExpired
	}
	if rule.Exhausted() {
		return ErrCouponUsageLimitReached
	}
	return nil
}
