package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/agrihub-cart/internal/domain/cart"
	"github.com/xenking/agrihub-cart/internal/domain/coupon"
	"github.com/xenking/agrihub-cart/internal/domain/order"
	"github.com/xenking/agrihub-cart/internal/handler"
	"github.com/xenking/agrihub-cart/internal/storage/postgres"
	"github.com/xenking/agrihub-cart/pkg/health"
	"github.com/xenking/agrihub-cart/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)

	// Domain services.
	carts := cart.NewRegistry(cart.RegistryConfig{
		TTL:         cfg.Sessions.TTL,
		MaxSessions: cfg.Sessions.Max,
	})
	orderService := order.NewService(productRepo, coupon.NewRepoValidator(couponRepo), orderRepo, m.TracerProvider())

	// Health checks.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddReadinessCheck("sessions", time.Second, health.CapacityCheck("cart sessions", carts.Len, cfg.Sessions.Max))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	// HTTP handlers.
	h, err := handler.New(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		APIKeyPepper: []byte(cfg.APIKeyPepper),
		SessionTTL:   cfg.Sessions.TTL,
		SecureCookie: cfg.Sessions.SecureCookie,
	}, productRepo, carts, orderService, apikeyRepo, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	rateKey := httpmiddleware.ClientIP
	if cfg.RateLimit.KeyBy == "session" {
		rateKey = httpmiddleware.SessionKey(handler.SessionCookie, handler.SessionHeader, carts.Has)
	}
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader, handler.SessionHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{handler.SessionHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: rateKey,
			}),
			httpmiddleware.Instrument("agrihub-cart", routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gCtx, cfg.Health.Interval)
	})
	if cfg.Sessions.TTL > 0 {
		g.Go(func() error {
			lg.Info("Sweeping idle carts",
				zap.Duration("ttl", cfg.Sessions.TTL),
				zap.Duration("interval", cfg.Sessions.SweepInterval),
			)
			return carts.Run(gCtx, cfg.Sessions.SweepInterval)
		})
	}
	g.Go(func() error {
		// Graceful shutdown: stop advertising readiness, drain, then stop.
		<-gCtx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server",
			zap.Duration("timeout", cfg.Graceful.ShutdownTimeout),
			zap.Int("carts_dropped", carts.Len()),
		)
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		healthSvc.SetReady(true)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
