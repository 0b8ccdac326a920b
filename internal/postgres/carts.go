package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type cartRepo struct{ tx pgx.Tx }

func (r cartRepo) Ensure(ctx context.Context, owner uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `INSERT INTO carts(owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING`, owner); err != nil {
		return fmt.Errorf("carts: ensure: %w", err)
	}
	return nil
}

func (r cartRepo) Lines(ctx context.Context, owner uuid.UUID) ([]orders.CartLine, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT product_id, quantity, added_at FROM cart_items
		WHERE owner_id=$1
		ORDER BY added_at, product_id`, owner)
	if err != nil {
		return nil, fmt.Errorf("carts: lines: %w", err)
	}
	defer rows.Close()

	out := []orders.CartLine{}
	for rows.Next() {
		var l orders.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("carts: scan line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r cartRepo) Increment(ctx context.Context, owner, product uuid.UUID, qty int) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `
		INSERT INTO cart_items(owner_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING quantity`, owner, product, qty).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("carts: increment: %w", err)
	}
	return n, nil
}

func (r cartRepo) Set(ctx context.Context, owner, product uuid.UUID, qty int) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `
		INSERT INTO cart_items(owner_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING quantity`, owner, product, qty).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("carts: set: %w", err)
	}
	return n, nil
}

func (r cartRepo) Remove(ctx context.Context, owner, product uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM cart_items WHERE owner_id=$1 AND product_id=$2`, owner, product); err != nil {
		return fmt.Errorf("carts: remove: %w", err)
	}
	return nil
}

func (r cartRepo) Clear(ctx context.Context, owner uuid.UUID) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM cart_items WHERE owner_id=$1`, owner); err != nil {
		return fmt.Errorf("carts: clear: %w", err)
	}
	return nil
}
