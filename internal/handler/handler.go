// Package handler serves the AgriHub catalog, cart and checkout JSON API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/agrihub-cart/internal/domain/auth"
	"github.com/xenking/agrihub-cart/internal/domain/cart"
	"github.com/xenking/agrihub-cart/internal/domain/order"
	"github.com/xenking/agrihub-cart/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
	// APIKeyPepper is the HMAC key API keys are hashed with.
	APIKeyPepper []byte
	// SessionTTL is the cart cookie lifetime. Zero issues a browser-session cookie.
	SessionTTL time.Duration
	// SecureCookie marks the cart cookie Secure.
	SecureCookie bool
}

// Checkouter turns a cart into an order.
type Checkouter interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.Order, error)
}

// Handler serves the JSON API on top of the domain services.
type Handler struct {
	products product.Repository
	carts    *cart.Registry
	orders   Checkouter
	apikeys  auth.Repository
	metrics  *metrics

	imageBaseURL string
	pepper       []byte
	sessionTTL   time.Duration
	secureCookie bool
}

// New constructs a Handler and registers its metrics with mp.
func New(
	cfg Config,
	products product.Repository,
	carts *cart.Registry,
	orders Checkouter,
	apikeys auth.Repository,
	mp metric.MeterProvider,
) (*Handler, error) {
	m, err := newMetrics(mp, carts.Len)
	if err != nil {
		return nil, errors.Wrap(err, "metrics")
	}
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		apikeys:      apikeys,
		metrics:      m,
		imageBaseURL: cfg.ImageBaseURL,
		pepper:       cfg.APIKeyPepper,
		sessionTTL:   cfg.SessionTTL,
		secureCookie: cfg.SecureCookie,
	}, nil
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{productId}", h.GetProduct)

	mux.HandleFunc("GET /api/cart", h.GetCart)
	mux.HandleFunc("DELETE /api/cart", h.ClearCart)
	mux.HandleFunc("POST /api/cart/items", h.AddItem)
	mux.HandleFunc("PUT /api/cart/items/{productId}", h.SetQuantity)
	mux.HandleFunc("DELETE /api/cart/items/{productId}", h.RemoveItem)
	mux.HandleFunc("POST /api/cart/checkout", h.Checkout)
}
