package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/agrihub-cart/internal/domain/cart"
	"github.com/xenking/agrihub-cart/internal/domain/coupon"
	"github.com/xenking/agrihub-cart/internal/domain/order"
	"github.com/xenking/agrihub-cart/internal/domain/product"
	"github.com/xenking/agrihub-cart/pkg/httpmiddleware"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errForbidden    = errors.New("api key lacks checkout scope")
	errNotInCart    = errors.New("product not in cart")

	errQuantityTooLarge = &validationError{
		msg: "quantity must not exceed " + strconv.Itoa(cart.MaxQuantity) + " per product",
	}
)

// validationError is a well-formed request the API refuses to act on.
type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

// writeError maps domain errors to API responses. Unknown errors are
// logged and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		msg    = "internal error"

		validation *validationError
		missing    *order.ProductNotFoundError
	)
	switch {
	case errors.Is(err, errBadJSON):
		status, msg = http.StatusBadRequest, errBadJSON.Error()
	case errors.As(err, &validation):
		status, msg = http.StatusUnprocessableEntity, validation.msg
	case errors.Is(err, errUnauthorized):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errForbidden):
		status, msg = http.StatusForbidden, errForbidden.Error()
	case errors.Is(err, product.ErrNotFound):
		status, msg = http.StatusNotFound, "product not found"
	case errors.Is(err, errNotInCart):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, cart.ErrSessionLimit):
		status, msg = http.StatusServiceUnavailable, "too many active carts, try again later"
	case errors.Is(err, order.ErrEmptyCart):
		status, msg = http.StatusBadRequest, "cart is empty"
	case errors.As(err, &missing):
		status, msg = http.StatusUnprocessableEntity, missing.Error()
	case errors.Is(err, coupon.ErrInvalidCoupon):
		status, msg = http.StatusUnprocessableEntity, "invalid coupon code"
	case errors.Is(err, coupon.ErrCouponExpired):
		status, msg = http.StatusUnprocessableEntity, "coupon expired"
	case errors.Is(err, coupon.ErrCouponUsageLimitReached):
		status, msg = http.StatusUnprocessableEntity, "coupon usage limit reached"
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	httpmiddleware.WriteError(w, status, msg)
}
