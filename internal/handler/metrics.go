package handler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/xenking/agrihub-cart/internal/handler"

type metrics struct {
	mutations metric.Int64Counter
	checkouts metric.Int64Counter
	revenue   metric.Float64Counter
}

func newMetrics(mp metric.MeterProvider, sessions func() int) (*metrics, error) {
	meter := mp.Meter(meterName)

	mutations, err := meter.Int64Counter("agrihub.cart.mutations",
		metric.WithDescription("Cart operations that changed a session cart"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "mutations counter")
	}
	checkouts, err := meter.Int64Counter("agrihub.cart.checkouts",
		metric.WithDescription("Checkout attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "checkouts counter")
	}
	revenue, err := meter.Float64Counter("agrihub.order.revenue",
		metric.WithDescription("Order totals after discounts"),
		metric.WithUnit("INR"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "revenue counter")
	}
	if _, err := meter.Int64ObservableGauge("agrihub.cart.sessions",
		metric.WithDescription("Live cart sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(sessions()))
			return nil
		}),
	); err != nil {
		return nil, errors.Wrap(err, "sessions gauge")
	}

	return &metrics{mutations: mutations, checkouts: checkouts, revenue: revenue}, nil
}

func (m *metrics) mutation(ctx context.Context, op string) {
	m.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *metrics) checkout(ctx context.Context, outcome string) {
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
