package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	require.NoError(t, Migrate(dsn, "../../migrations"))

	pool, err := Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seedOwner(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `INSERT INTO users(id, email) VALUES ($1, $2)`, id, id.String()+"@test.local")
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, name, price string, stock int) orders.Product {
	t.Helper()
	p := orders.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	_, err := pool.Exec(context.Background(), `INSERT INTO products(id, name, price, stock) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Name, p.Price, p.Stock)
	require.NoError(t, err)
	return p
}

func stockOf(t *testing.T, pool *pgxpool.Pool, id uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT stock FROM products WHERE id=$1`, id).Scan(&n))
	return n
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u:p@h/db", migrateURL("postgresql://u:p@h/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, isRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryable(errors.New("plain")))
}

func TestStore_CheckoutAndCancel(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, 3)
	ctx := context.Background()

	owner := seedOwner(t, pool)
	pen := seedProduct(t, pool, "Pulpen", "3.50", 4)
	ink := seedProduct(t, pool, "Tinta", "9.00", 1)

	co := orders.NewCheckout(store, nil)
	o, _, err := co.CreateFromItems(ctx, orders.Request{
		OwnerID: owner, Address: "Bandung", Phone: "0812",
		Items:          []orders.ItemInput{{ProductID: pen.ID, Quantity: 2}, {ProductID: ink.ID, Quantity: 1}},
		IdempotencyKey: "pg-" + uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stockOf(t, pool, pen.ID))
	assert.Equal(t, 0, stockOf(t, pool, ink.ID))

	svc := orders.NewService(store, nil)
	got, err := svc.Get(ctx, orders.Requester{OwnerID: owner}, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.True(t, got.Total().Equal(decimal.RequireFromString("16.00")))

	_, err = svc.Transition(ctx, orders.Requester{OwnerID: owner}, o.ID, "Cancelled")
	require.NoError(t, err)
	assert.Equal(t, 4, stockOf(t, pool, pen.ID))
	assert.Equal(t, 1, stockOf(t, pool, ink.ID))
}

func TestStore_FailedLineRollsBack(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, 3)

	owner := seedOwner(t, pool)
	pen := seedProduct(t, pool, "Pulpen", "3.50", 4)
	ink := seedProduct(t, pool, "Tinta", "9.00", 1)

	_, _, err := orders.NewCheckout(store, nil).CreateFromItems(context.Background(), orders.Request{
		OwnerID: owner, Address: "Bandung", Phone: "0812",
		Items: []orders.ItemInput{{ProductID: pen.ID, Quantity: 2}, {ProductID: ink.ID, Quantity: 2}},
	})
	var ise *orders.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "Tinta", ise.ProductName)
	assert.Equal(t, 4, stockOf(t, pool, pen.ID))
}

func TestStore_IdempotencyReplay(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, 3)

	owner := seedOwner(t, pool)
	pen := seedProduct(t, pool, "Pulpen", "3.50", 10)
	req := orders.Request{
		OwnerID: owner, Address: "Bandung", Phone: "0812",
		Items:          []orders.ItemInput{{ProductID: pen.ID, Quantity: 1}},
		IdempotencyKey: "replay-" + uuid.NewString(),
	}

	co := orders.NewCheckout(store, nil)
	first, _, err := co.CreateFromItems(context.Background(), req)
	require.NoError(t, err)
	second, replayed, err := co.CreateFromItems(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 9, stockOf(t, pool, pen.ID))
}

func TestStore_ConcurrentLastUnit(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, 5)
	cup := seedProduct(t, pool, "Gelas", "15.00", 1)

	const buyers = 8
	owners := make([]uuid.UUID, buyers)
	for i := range owners {
		owners[i] = seedOwner(t, pool)
	}

	co := orders.NewCheckout(store, nil)
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, owner := range owners {
		wg.Add(1)
		go func(owner uuid.UUID) {
			defer wg.Done()
			_, _, err := co.CreateFromItems(context.Background(), orders.Request{
				OwnerID: owner, Address: "Bandung", Phone: "0812",
				Items: []orders.ItemInput{{ProductID: cup.ID, Quantity: 1}},
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, orders.ErrInsufficientStock)
		}(owner)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, stockOf(t, pool, cup.ID))
}

func TestStore_CartUpsert(t *testing.T) {
	pool := testPool(t)
	store := NewStore(pool, 3)
	owner := seedOwner(t, pool)
	pen := seedProduct(t, pool, "Pulpen", "3.50", 10)

	err := store.WithTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		require.NoError(t, tx.Carts().Ensure(ctx, owner))
		n, err := tx.Carts().Increment(ctx, owner, pen.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		n, err = tx.Carts().Increment(ctx, owner, pen.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		n, err = tx.Carts().Set(ctx, owner, pen.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}
