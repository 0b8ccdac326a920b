package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ledger struct{ tx pgx.Tx }

func (l ledger) CheckAvailability(ctx context.Context, id uuid.UUID, qty int) (bool, error) {
	if !orders.ValidQuantity(qty) {
		return false, orders.ErrInvalidQuantity
	}
	var ok bool
	err := l.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1 AND stock >= $2)`, id, qty).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("inventory: check availability: %w", err)
	}
	return ok, nil
}

// Reserve: cek dan kurangi stok dalam satu statement. Row lock dari UPDATE
// membuat reservasi paralel untuk produk yang sama antri, dan kondisi
// stock >= qty dievaluasi ulang setelah lock didapat.
func (l ledger) Reserve(ctx context.Context, id uuid.UUID, qty int) (int, error) {
	if !orders.ValidQuantity(qty) {
		return 0, orders.ErrInvalidQuantity
	}
	var remaining int
	err := l.tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2
		RETURNING stock`, id, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("inventory: reserve: %w", err)
	}

	// tidak ada row ter-update: produk hilang atau stok kurang
	var stock int
	err = l.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, id).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &orders.ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return 0, fmt.Errorf("inventory: reserve: read stock: %w", err)
	}
	return 0, &orders.InsufficientStockError{ProductID: id, Requested: qty, Available: stock}
}

func (l ledger) Release(ctx context.Context, id uuid.UUID, qty int) error {
	if !orders.ValidQuantity(qty) {
		return orders.ErrInvalidQuantity
	}
	// produk yang sudah dihapus dari katalog dilewati (0 rows)
	if _, err := l.tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, id, qty); err != nil {
		return fmt.Errorf("inventory: release: %w", err)
	}
	return nil
}
