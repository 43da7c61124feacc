package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/agrihub-cart/internal/domain/coupon"
	"github.com/xenking/agrihub-cart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, subtotal, discounts, total, coupon_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// Guarded so uses never exceeds max_uses.
	redeemCouponSQL = `UPDATE coupons SET uses = uses + 1
		WHERE code = $1 AND (max_uses = 0 OR uses < max_uses)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header, its lines and the coupon use in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if o.CouponCode != "" {
			tag, err := tx.Exec(ctx, redeemCouponSQL, o.CouponCode)
			if err != nil {
				return fmt.Errorf("redeeming coupon %q: %w", o.CouponCode, err)
			}
			if tag.RowsAffected() == 0 {
				return coupon.ErrCouponUsageLimitReached
			}
		}

		if _, err := tx.Exec(ctx, createOrderSQL,
			o.ID, o.Subtotal, o.Discounts, o.Total, o.CouponCode, o.CreatedAt,
		); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		rows := make([][]any, len(o.Items))
		for i, it := range o.Items {
			rows[i] = []any{o.ID, i + 1, it.ProductID, it.Name, it.Unit, it.UnitPrice, it.Quantity}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"order_items"},
			[]string{"order_id", "line", "product_id", "name", "unit", "unit_price", "quantity"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("inserting order items: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}
