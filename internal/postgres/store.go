package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const defaultMaxTries = 5

// Store implements orders.Store on a pgx pool. Each unit of work runs in a
// read committed transaction; deadlocks and serialization failures are
// retried from the start since the failed attempt left nothing behind.
type Store struct {
	db       *pgxpool.Pool
	maxTries uint
}

func NewStore(db *pgxpool.Pool, maxTries int) *Store {
	if maxTries <= 0 {
		maxTries = defaultMaxTries
	}
	return &Store{db: db, maxTries: uint(maxTries)}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := s.run(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if isRetryable(err) {
			log.Warn().Err(err).Int("attempt", attempt).Msg("postgres: retrying transaction")
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries),
	)
	if err != nil && isRetryable(err) {
		return fmt.Errorf("%w: gave up after %d attempts: %w", orders.ErrTransactionFailed, attempt, err)
	}
	return err
}

func (s *Store) run(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %w", orders.ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isRetryable(err) {
			return err
		}
		return fmt.Errorf("%w: commit: %w", orders.ErrTransactionFailed, err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return false
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == pgerrcode.UniqueViolation &&
		pgErr.ConstraintName == constraint
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Owners() orders.OwnerRepository { return ownerRepo{t.tx} }
func (t *pgTx) Catalog() orders.Catalog        { return catalog{t.tx} }
func (t *pgTx) Inventory() orders.Ledger       { return ledger{t.tx} }
func (t *pgTx) Carts() orders.CartRepository   { return cartRepo{t.tx} }
func (t *pgTx) Orders() orders.Repository      { return orderRepo{t.tx} }
