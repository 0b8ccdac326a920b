package orders_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev orders.Event) error {
	return m.Called(ctx, ev).Error(0)
}

func eventOfType(typ string) any {
	return mock.MatchedBy(func(ev orders.Event) bool { return ev.Type == typ })
}

type fixture struct {
	store  *memstore.Store
	owner  uuid.UUID
	other  uuid.UUID
	apple  orders.Product
	banana orders.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memstore.New(),
		owner:  uuid.New(),
		other:  uuid.New(),
		apple:  orders.Product{ID: uuid.New(), Name: "Apple", Price: decimal.RequireFromString("2.50"), Stock: 10},
		banana: orders.Product{ID: uuid.New(), Name: "Banana", Price: decimal.RequireFromString("1.25"), Stock: 1},
	}
	f.store.SeedOwner(f.owner)
	f.store.SeedOwner(f.other)
	f.store.SeedProduct(f.apple)
	f.store.SeedProduct(f.banana)
	return f
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	n, ok := f.store.Stock(id)
	require.True(t, ok, "product %s missing", id)
	return n
}

func (f *fixture) request(items ...orders.ItemInput) orders.Request {
	return orders.Request{
		OwnerID: f.owner,
		Address: "Jl. Sudirman 1, Jakarta",
		Phone:   "+62 812 0000 0000",
		Items:   items,
	}
}

func (f *fixture) addToCart(t *testing.T, product uuid.UUID, qty int) {
	t.Helper()
	err := f.store.WithTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		if err := tx.Carts().Ensure(ctx, f.owner); err != nil {
			return err
		}
		_, err := tx.Carts().Increment(ctx, f.owner, product, qty)
		return err
	})
	require.NoError(t, err)
}

func (f *fixture) cartLines(t *testing.T) []orders.CartLine {
	t.Helper()
	var lines []orders.CartLine
	err := f.store.WithTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		var err error
		lines, err = tx.Carts().Lines(ctx, f.owner)
		return err
	})
	require.NoError(t, err)
	return lines
}

func item(p orders.Product, qty int) orders.ItemInput {
	return orders.ItemInput{ProductID: p.ID, Quantity: qty}
}
