package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ownerRepo struct{ tx pgx.Tx }

func (r ownerRepo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var ok bool
	if err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id=$1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("owners: exists: %w", err)
	}
	return ok, nil
}
