// Command seed-db loads the marketplace catalog, launch coupons and a
// partner API key into PostgreSQL.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/agrihub-cart/db"
	"github.com/xenking/agrihub-cart/internal/domain/auth"
	"github.com/xenking/agrihub-cart/internal/domain/coupon"
	"github.com/xenking/agrihub-cart/internal/domain/product"
	"github.com/xenking/agrihub-cart/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "products JSON file (defaults to the embedded catalog)")
	flag.StringVar(&apiKey, "api-key", "", "partner API key to seed (or AGRIHUB_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or AGRIHUB_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	databaseURL = orEnv(databaseURL, "DATABASE_URL")
	apiKey = orEnv(apiKey, "AGRIHUB_SEED_API_KEY")
	apiKeyPepper = orEnv(apiKeyPepper, "AGRIHUB_API_KEY_PEPPER")
	switch {
	case databaseURL == "":
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	case apiKey == "":
		lg.Fatal("API key is required: set --api-key or AGRIHUB_SEED_API_KEY")
	case apiKeyPepper == "":
		lg.Fatal("API key pepper is required: set --api-key-pepper or AGRIHUB_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func orEnv(v, env string) string {
	if v != "" {
		return v
	}
	return os.Getenv(env)
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile, apiKey, pepper string) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, lg, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, lg, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, lg, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, repo *postgres.ProductRepository, path string) error {
	data := db.Products
	if path != "" {
		lg.Info("Reading products file", zap.String("path", path))
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return errors.Wrap(err, "read products file")
		}
	}

	products, err := product.DecodeCatalog(data)
	if err != nil {
		return err
	}
	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return err
		}
		lg.Info("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}

func seedCoupons(ctx context.Context, lg *zap.Logger, repo *postgres.CouponRepository) error {
	harvestEnd := time.Date(2027, time.January, 31, 23, 59, 59, 0, time.UTC)
	rules := []coupon.Rule{
		{
			Code:         "WELCOME10",
			DiscountType: coupon.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			MaxDiscount:  decimal.NewFromInt(150),
			Description:  "First order: 10% off up to ₹150",
		},
		{
			Code:         "MANDI50",
			DiscountType: coupon.DiscountFixed,
			Value:        decimal.NewFromInt(50),
			MinAmount:    decimal.NewFromInt(500),
			Description:  "₹50 off orders above ₹500",
		},
		{
			Code:         "HARVEST3",
			DiscountType: coupon.DiscountFreeLowest,
			MinItems:     3,
			Description:  "Buy 3 or more, cheapest item free",
			ValidUntil:   &harvestEnd,
			MaxUses:      1000,
		},
	}
	for _, r := range rules {
		if err := repo.Upsert(ctx, r); err != nil {
			return err
		}
		lg.Info("Upserted coupon", zap.String("code", r.Code), zap.String("description", r.Description))
	}
	return nil
}

func seedAPIKey(ctx context.Context, lg *zap.Logger, repo *postgres.APIKeyRepository, key, pepper string) error {
	info := auth.APIKeyInfo{
		ID:      "market-connect",
		KeyHash: auth.HashKey(key, []byte(pepper)),
		Name:    "Market-connect partner",
		Scopes:  []string{auth.ScopeCheckout},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return err
	}
	lg.Info("Upserted API key", zap.String("id", info.ID), zap.Strings("scopes", info.Scopes))
	return nil
}
