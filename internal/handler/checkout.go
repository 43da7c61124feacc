package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/agrihub-cart/internal/domain/auth"
	"github.com/xenking/agrihub-cart/internal/domain/cart"
	"github.com/xenking/agrihub-cart/internal/domain/order"
)

// APIKeyHeader carries the partner API key on checkout.
const APIKeyHeader = "api_key"

// Checkout places an order for the session cart and empties the cart once
// the order is stored. The session stays locked for the whole checkout, so
// concurrent requests on the same cart wait for it.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := h.sessionID(w, r)

	key, err := h.authenticate(ctx, r.Header.Get(APIKeyHeader))
	if err != nil {
		h.metrics.checkout(ctx, "denied")
		writeError(w, r, err)
		return
	}

	var req checkoutRequest
	if err := decodeBody(w, r, req.decode); err != nil {
		writeError(w, r, err)
		return
	}

	var placed *order.Order
	err = h.carts.Update(id, func(c *cart.Cart) error {
		o, err := h.orders.Checkout(ctx, order.CheckoutRequest{
			Items:      c.Items(),
			CouponCode: req.CouponCode,
		})
		if err != nil {
			return err
		}
		c.Clear()
		placed = o
		return nil
	})
	if err != nil {
		h.metrics.checkout(ctx, "rejected")
		writeError(w, r, err)
		return
	}

	h.metrics.checkout(ctx, "placed")
	h.metrics.revenue.Add(ctx, placed.Total.InexactFloat64(),
		metric.WithAttributes(attribute.Bool("coupon", placed.CouponCode != "")),
	)
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", placed.ID),
		zap.String("api_key", key.ID),
		zap.Int("lines", len(placed.Items)),
		zap.Stringer("total", placed.Total),
	)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, placed) })
}

// authenticate resolves an API key with the checkout scope.
func (h *Handler) authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hash := auth.HashKey(key, h.pepper)

	info, err := h.apikeys.FindByHash(ctx, hash)
	if err != nil {
		zctx.From(ctx).Debug("API key lookup failed", zap.Error(err))
		return nil, errUnauthorized
	}

	// The stored hash must still match the computed one.
	want, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return nil, errUnauthorized
	}
	got, _ := hex.DecodeString(hash)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return nil, errUnauthorized
	}

	if !info.HasScope(auth.ScopeCheckout) {
		return nil, errors.Wrapf(errForbidden, "key %s", info.ID)
	}
	return info, nil
}
