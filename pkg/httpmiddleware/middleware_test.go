package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func testMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products/{productId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /api/cart/checkout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("GET /panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	return mux
}

func TestWrap_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(okHandler(), mark("outer"), mark("inner"))
	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestMakeRouteFinder(t *testing.T) {
	find := MakeRouteFinder(testMux())

	route, ok := find(httptest.NewRequest(http.MethodGet, "/api/products/guntur-red-chilli", nil))
	require.True(t, ok)
	assert.Equal(t, "GET /api/products/{productId}", route)

	_, ok = find(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.False(t, ok)
}

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mux := testMux()
	find := MakeRouteFinder(mux)
	h := Wrap(mux,
		RequestID(),
		InjectLogger(zap.New(core)),
		Instrument("agrihub-cart", find, noopTelemetry{}),
		LogRequests(find),
		Labeler(find),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/products/tomato", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := serve(h, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	serve(h, httptest.NewRequest(http.MethodPost, "/api/cart/checkout", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "Request", entries[0].Message)
	assert.Equal(t, "GET /api/products/{productId}", first["route"])
	assert.Equal(t, int64(http.StatusOK), first["status"])
	assert.Equal(t, int64(2), first["bytes"])
	assert.Equal(t, "req-42", first["request_id"])

	assert.Equal(t, "Request failed", entries[1].Message)
	assert.Equal(t, int64(http.StatusBadGateway), entries[1].ContextMap()["status"])
}

func TestInjectLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("inside")
	}), RequestID(), InjectLogger(zap.New(core)))

	serve(h, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, 1, logs.Len())
	assert.NotEmpty(t, logs.All()[0].ContextMap()["request_id"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := Wrap(testMux(), InjectLogger(zap.New(core)), Recovery())

	w := serve(h, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "close", w.Header().Get("Connection"))
	assert.JSONEq(t, `{"code":500,"message":"internal error"}`, w.Body.String())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["panic"])
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	for _, tt := range []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "Generated", incoming: "", keep: false},
		{name: "Propagated", incoming: "abc-123", keep: true},
		{name: "TooLong", incoming: strings.Repeat("x", 129), keep: false},
		{name: "ControlChars", incoming: "bad\nid", keep: false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			w := serve(h, req)

			got := w.Header().Get(RequestIDHeader)
			assert.Equal(t, got, seen)
			if tt.keep {
				assert.Equal(t, tt.incoming, got)
			} else {
				assert.Len(t, got, 36)
			}
		})
	}

	assert.Empty(t, RequestIDFromContext(t.Context()))
}

func TestCORS(t *testing.T) {
	preflight := func(origin string) *http.Request {
		req := httptest.NewRequest(http.MethodOptions, "/api/cart/items", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "content-type")
		return req
	}

	t.Run("PreflightAllowed", func(t *testing.T) {
		h := CORS(CORSConfig{
			AllowOrigins:     []string{"https://Shop.AgriHub.in"},
			AllowHeaders:     []string{"Content-Type", "X-Cart-Session"},
			AllowCredentials: true,
			MaxAge:           600,
		})(okHandler())

		w := serve(h, preflight("https://shop.agrihub.in"))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://Shop.AgriHub.in", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Content-Type, X-Cart-Session", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
		assert.Contains(t, w.Header().Values("Vary"), "Origin")
	})

	t.Run("PreflightRejected", func(t *testing.T) {
		h := CORS(CORSConfig{AllowOrigins: []string{"https://shop.agrihub.in"}})(okHandler())

		w := serve(h, preflight("https://evil.example"))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("EchoRequestedHeaders", func(t *testing.T) {
		h := CORS(CORSConfig{})(okHandler())

		w := serve(h, preflight("https://any.example"))
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "content-type", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("WildcardWithCredentials", func(t *testing.T) {
		h := CORS(CORSConfig{AllowOrigins: []string{"*"}, AllowCredentials: true})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set("Origin", "https://market.example")
		w := serve(h, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://market.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Values("Vary"), "Origin")
	})

	t.Run("ActualRequestExposeHeaders", func(t *testing.T) {
		h := CORS(CORSConfig{ExposeHeaders: []string{"X-Cart-Session"}})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set("Origin", "https://market.example")
		w := serve(h, req)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "X-Cart-Session", w.Header().Get("Access-Control-Expose-Headers"))
		assert.Empty(t, w.Header().Values("Vary"))
	})

	t.Run("NoOrigin", func(t *testing.T) {
		h := CORS(CORSConfig{AllowOrigins: []string{"https://shop.agrihub.in"}})(okHandler())

		w := serve(h, httptest.NewRequest(http.MethodGet, "/api/cart", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, []string{"Origin"}, w.Header().Values("Vary"))
	})
}
