package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type catalog struct{ tx pgx.Tx }

func (c catalog) GetProduct(ctx context.Context, id uuid.UUID) (orders.Product, error) {
	var p orders.Product
	err := c.tx.QueryRow(ctx, `SELECT id, name, price, stock FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Product{}, &orders.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return orders.Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return p, nil
}

func (c catalog) GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]orders.Product, error) {
	out := make(map[uuid.UUID]orders.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := c.tx.Query(ctx, `SELECT id, name, price, stock FROM products WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("catalog: get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
