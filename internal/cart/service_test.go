package cart_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	store *memstore.Store
	svc   *cart.Service
	owner uuid.UUID
	tea   orders.Product
	cup   orders.Product
}

func setup(t *testing.T) *env {
	t.Helper()
	e := &env{
		store: memstore.New(),
		owner: uuid.New(),
		tea:   orders.Product{ID: uuid.New(), Name: "Teh Melati", Price: decimal.RequireFromString("4.20"), Stock: 10},
		cup:   orders.Product{ID: uuid.New(), Name: "Cangkir", Price: decimal.RequireFromString("12.00"), Stock: 3},
	}
	e.store.SeedOwner(e.owner)
	e.store.SeedProduct(e.tea)
	e.store.SeedProduct(e.cup)
	e.svc = cart.NewService(e.store)
	return e
}

func TestGet_CreatesEmptyCart(t *testing.T) {
	e := setup(t)
	c, err := e.svc.Get(context.Background(), e.owner)
	require.NoError(t, err)
	assert.Equal(t, e.owner, c.OwnerID)
	assert.Empty(t, c.Items)
	assert.True(t, c.TotalPrice.IsZero())

	_, err = e.svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, orders.ErrOwnerNotFound)
}

func TestAddOrIncrement_Accumulates(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, 2)
	require.NoError(t, err)
	c, err := e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.True(t, c.Items[0].LineTotal.Equal(decimal.RequireFromString("21.00")))
	assert.True(t, c.TotalPrice.Equal(decimal.RequireFromString("21.00")))

	stock, _ := e.store.Stock(e.tea.ID)
	assert.Equal(t, 10, stock, "cart never reserves stock")
}

func TestAddOrIncrement_SoftCheck(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.AddOrIncrement(ctx, e.owner, e.cup.ID, 2)
	require.NoError(t, err)

	_, err = e.svc.AddOrIncrement(ctx, e.owner, e.cup.ID, 2)
	var ise *orders.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "Cangkir", ise.ProductName)
	assert.Equal(t, 3, ise.Available)
	assert.Equal(t, 4, ise.Requested)

	c, err := e.svc.Get(ctx, e.owner)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Items[0].Quantity, "rejected increment leaves line unchanged")
}

func TestAddOrIncrement_Rejections(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.AddOrIncrement(ctx, e.owner, uuid.New(), 1)
	assert.ErrorIs(t, err, orders.ErrProductNotFound)

	_, err = e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, 0)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)

	_, err = e.svc.AddOrIncrement(ctx, uuid.New(), e.tea.ID, 1)
	assert.ErrorIs(t, err, orders.ErrOwnerNotFound)
}

func TestQuantityUpperBound(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, orders.MaxQuantity+1)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)

	_, err = e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, 2)
	require.NoError(t, err)
	_, err = e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, orders.MaxQuantity)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity, "accumulated line over the cap")

	_, err = e.svc.SetQuantity(ctx, e.owner, e.tea.ID, orders.MaxQuantity+1)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)

	_, err = e.svc.CheckAvailability(ctx, e.tea.ID, orders.MaxQuantity+1)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)

	c, err := e.svc.Get(ctx, e.owner)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
}

func TestSetQuantity(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, 2)
	require.NoError(t, err)

	c, err := e.svc.SetQuantity(ctx, e.owner, e.tea.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Items[0].Quantity)

	_, err = e.svc.SetQuantity(ctx, e.owner, e.tea.ID, 11)
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)

	c, err = e.svc.SetQuantity(ctx, e.owner, e.tea.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items, "zero quantity removes the line")

	c, err = e.svc.SetQuantity(ctx, e.owner, e.cup.ID, 1)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
}

func TestRemoveAndClearAreIdempotent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, 1)
	require.NoError(t, err)
	_, err = e.svc.AddOrIncrement(ctx, e.owner, e.cup.ID, 1)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		c, err := e.svc.Remove(ctx, e.owner, e.tea.ID)
		require.NoError(t, err)
		require.Len(t, c.Items, 1)
		assert.Equal(t, e.cup.ID, c.Items[0].ProductID)
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, e.svc.Clear(ctx, e.owner))
	}
	items, err := e.svc.Items(ctx, e.owner)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSnapshotUsesLivePrices(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.AddOrIncrement(ctx, e.owner, e.tea.ID, 2)
	require.NoError(t, err)
	_, err = e.svc.AddOrIncrement(ctx, e.owner, e.cup.ID, 1)
	require.NoError(t, err)

	e.store.SeedProduct(orders.Product{ID: e.tea.ID, Name: e.tea.Name, Price: decimal.RequireFromString("5.00"), Stock: 10})
	total, err := e.svc.Total(ctx, e.owner)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("22.00")), "got %s", total)

	e.store.DeleteProduct(e.cup.ID)
	c, err := e.svc.Get(ctx, e.owner)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.False(t, c.Items[1].Available)
	assert.True(t, c.Items[1].UnitPrice.IsZero())
	assert.True(t, c.TotalPrice.Equal(decimal.RequireFromString("10.00")))
}

func TestCheckAvailability(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	ok, err := e.svc.CheckAvailability(ctx, e.cup.ID, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.svc.CheckAvailability(ctx, e.cup.ID, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.svc.CheckAvailability(ctx, e.cup.ID, 0)
	assert.ErrorIs(t, err, orders.ErrInvalidQuantity)
}
