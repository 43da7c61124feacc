package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/agrihub-cart/internal/domain/cart"
	"github.com/xenking/agrihub-cart/internal/domain/coupon"
	"github.com/xenking/agrihub-cart/internal/domain/product"
)

// ErrEmptyCart is returned when checking out a cart without line items.
var ErrEmptyCart = fmt.Errorf("cart is empty")

// ProductNotFoundError indicates a cart product is no longer in the catalog.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// CheckoutRequest holds the input for checking out a cart.
type CheckoutRequest struct {
	Items      []cart.LineItem
	CouponCode string
}

// Service turns carts into persisted orders.
type Service struct {
	products product.Repository
	coupons  coupon.Validator
	orders   Repository
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	coupons coupon.Validator,
	orders Repository,
	tp trace.TracerProvider,
) *Service {
	return &Service{
		products: products,
		coupons:  coupons,
		orders:   orders,
		tracer:   tp.Tracer("github.com/xenking/agrihub-cart/internal/domain/order"),
		now:      time.Now,
	}
}

// Checkout re-prices the cart against the catalog, applies the coupon and
// persists the order. The coupon use is recorded by the order Repository
// together with the order. The cart itself is left untouched; clearing it after
// a successful checkout is up to the caller.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(
			attribute.Int("cart.lines", len(req.Items)),
			attribute.Bool("cart.coupon", req.CouponCode != ""),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, len(req.Items))
	for i, li := range req.Items {
		ids[i] = li.Product.ID
	}

	// Batch fetch current prices in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	priced := make([]cart.LineItem, len(req.Items))
	items := make([]Item, len(req.Items))
	subtotal := decimal.Zero
	for i, li := range req.Items {
		p, ok := byID[li.Product.ID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: li.Product.ID}
		}
		priced[i] = cart.LineItem{Product: p, Quantity: li.Quantity}
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			Unit:      p.Unit,
			UnitPrice: p.Price,
			Quantity:  li.Quantity,
		}
		subtotal = subtotal.Add(priced[i].Subtotal())
	}

	discount := decimal.Zero
	couponCode := req.CouponCode
	if couponCode != "" {
		d, err := s.coupons.Validate(ctx, couponCode, priced)
		if err != nil {
			return nil, fmt.Errorf("validate coupon: %w", err)
		}
		discount = d.Amount
		if d.Code != "" {
			couponCode = d.Code
		}
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	o := &Order{
		ID:         uuid.New().String(),
		Items:      items,
		Subtotal:   subtotal.Round(2),
		Discounts:  discount.Round(2),
		Total:      total.Round(2),
		CouponCode: couponCode,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	span.SetAttributes(attribute.String("order.id", o.ID))
	return o, nil
}
