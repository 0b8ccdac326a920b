package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const idempotencyConstraint = "orders_owner_idempotency_key"

const orderColumns = `id, owner_id, address, phone, status, COALESCE(idempotency_key, ''), order_date, updated_at`

type orderRepo struct{ tx pgx.Tx }

func (r orderRepo) Create(ctx context.Context, o *orders.Order) error {
	var key *string
	if o.IdempotencyKey != "" {
		key = &o.IdempotencyKey
	}
	_, err := r.tx.Exec(ctx, `
		INSERT INTO orders(id, owner_id, address, phone, status, idempotency_key, order_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.OwnerID, o.Address, o.Phone, string(o.Status), key, o.OrderDate, o.UpdatedAt)
	if isUniqueViolation(err, idempotencyConstraint) {
		return orders.ErrIdempotencyConflict
	}
	if err != nil {
		return fmt.Errorf("orders: insert: %w", err)
	}

	// insert items
	for _, it := range o.Items {
		if _, err := r.tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, unit_price, quantity)
			VALUES ($1, $2, $3, $4)`,
			o.ID, it.ProductID, it.UnitPrice, it.Quantity); err != nil {
			return fmt.Errorf("orders: insert item: %w", err)
		}
	}
	return nil
}

func (r orderRepo) Get(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (r orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (r orderRepo) FindByIdempotencyKey(ctx context.Context, owner uuid.UUID, key string) (*orders.Order, error) {
	return r.one(ctx, `SELECT `+orderColumns+` FROM orders WHERE owner_id=$1 AND idempotency_key=$2`, owner, key)
}

func (r orderRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]orders.Order, error) {
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders WHERE owner_id=$1 ORDER BY order_date DESC, id`, owner)
}

func (r orderRepo) ListAll(ctx context.Context) ([]orders.Order, error) {
	return r.many(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY order_date DESC, id`)
}

func (r orderRepo) Update(ctx context.Context, o *orders.Order) error {
	ct, err := r.tx.Exec(ctx, `
		UPDATE orders SET address=$2, phone=$3, status=$4, updated_at=$5
		WHERE id=$1`, o.ID, o.Address, o.Phone, string(o.Status), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("orders: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (r orderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.tx.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("orders: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (r orderRepo) one(ctx context.Context, sql string, args ...any) (*orders.Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orders: get: %w", err)
	}
	items, err := r.items(ctx, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (r orderRepo) many(ctx context.Context, sql string, args ...any) ([]orders.Order, error) {
	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("orders: scan: %w", err)
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(out))
	for _, o := range out {
		ids = append(ids, o.ID)
	}
	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r orderRepo) items(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]orders.OrderItem, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT order_id, product_id, unit_price, quantity FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY id`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("orders: items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]orders.OrderItem, len(ids))
	for rows.Next() {
		var (
			orderID uuid.UUID
			it      orders.OrderItem
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("orders: scan item: %w", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		status string
	)
	err := row.Scan(&o.ID, &o.OwnerID, &o.Address, &o.Phone, &status, &o.IdempotencyKey, &o.OrderDate, &o.UpdatedAt)
	o.Status = orders.Status(status)
	return o, err
}
