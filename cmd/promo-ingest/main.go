// Command promo-ingest loads partner promo-code dumps and stores every code
// found in at least two dumps as a coupon.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/agrihub-cart/internal/promo"
	"github.com/xenking/agrihub-cart/internal/storage/postgres"
)

func main() {
	var (
		pattern     string
		databaseURL string
		dryRun      bool
	)
	flag.StringVar(&pattern, "files", "data/promo*.gz", "glob matching partner promo dumps")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "print shared codes without writing them")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, pattern, databaseURL, dryRun); err != nil {
		lg.Fatal("Promo ingest failed", zap.Error(err))
	}
	lg.Info("Promo ingest completed")
}

func run(ctx context.Context, lg *zap.Logger, pattern, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "glob")
	}
	if len(files) < 2 {
		return errors.Errorf("need at least two dumps, %q matched %d", pattern, len(files))
	}

	opts := promo.DefaultOptions()
	opts.Logger = lg

	lg.Info("Pass 1: building filters", zap.Strings("files", files))
	filters, err := promo.BuildFilters(ctx, files, opts)
	if err != nil {
		return errors.Wrap(err, "build filters")
	}

	lg.Info("Pass 2: collecting shared codes")
	codes, err := promo.SharedCodes(ctx, files, filters, opts)
	if err != nil {
		return errors.Wrap(err, "shared codes")
	}
	lg.Info("Shared codes found", zap.Int("count", len(codes)))

	if dryRun || len(codes) == 0 {
		for _, code := range codes {
			lg.Info("Shared code", zap.String("code", code))
		}
		return nil
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	coupons := postgres.NewCouponRepository(pool)
	for i, code := range codes {
		if err := coupons.Upsert(ctx, promo.RuleFor(code)); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", code)
		}
		if (i+1)%100 == 0 || i+1 == len(codes) {
			lg.Info("Write progress", zap.Int("written", i+1), zap.Int("total", len(codes)))
		}
	}
	return nil
}
