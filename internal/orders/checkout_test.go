package orders_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestCheckout_CreateFromItems(t *testing.T) {
	f := newFixture(t)
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, eventOfType(orders.EventOrderCreated)).Return(nil).Once()
	co := orders.NewCheckout(f.store, pub)

	o, replayed, err := co.CreateFromItems(context.Background(), f.request(item(f.apple, 3), item(f.banana, 1)))
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.Equal(t, orders.StatusCreated, o.Status)
	assert.Equal(t, f.owner, o.OwnerID)
	require.Len(t, o.Items, 2)
	assert.Equal(t, f.apple.ID, o.Items[0].ProductID)
	assert.True(t, o.Items[0].UnitPrice.Equal(f.apple.Price))
	assert.True(t, o.Total().Equal(decimal.RequireFromString("8.75")))

	assert.Equal(t, 7, f.stock(t, f.apple.ID))
	assert.Equal(t, 0, f.stock(t, f.banana.ID))
	pub.AssertExpectations(t)
}

func TestCheckout_FailedLineRollsBackEarlierReservations(t *testing.T) {
	f := newFixture(t)
	pub := new(mockPublisher)
	co := orders.NewCheckout(f.store, pub)

	_, _, err := co.CreateFromItems(context.Background(), f.request(item(f.apple, 4), item(f.banana, 2)))
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	var ise *orders.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, f.banana.ID, ise.ProductID)
	assert.Equal(t, "Banana", ise.ProductName)
	assert.Equal(t, 1, ise.Available)
	assert.Equal(t, 2, ise.Requested)

	assert.Equal(t, 10, f.stock(t, f.apple.ID), "first line must be untouched")
	assert.Equal(t, 1, f.stock(t, f.banana.ID))

	mine, err := orders.NewService(f.store, pub).ListMine(context.Background(), orders.Requester{OwnerID: f.owner})
	require.NoError(t, err)
	assert.Empty(t, mine)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestCheckout_Rejections(t *testing.T) {
	f := newFixture(t)
	co := orders.NewCheckout(f.store, nil)
	ghost := uuid.New()

	tests := []struct {
		name    string
		req     orders.Request
		wantErr error
	}{
		{
			name:    "unknown_owner",
			req:     orders.Request{OwnerID: uuid.New(), Address: "a", Phone: "p", Items: []orders.ItemInput{item(f.apple, 1)}},
			wantErr: orders.ErrOwnerNotFound,
		},
		{name: "empty", req: f.request(), wantErr: orders.ErrEmptyOrder},
		{
			name:    "blank_address",
			req:     orders.Request{OwnerID: f.owner, Address: "  ", Phone: "p", Items: []orders.ItemInput{item(f.apple, 1)}},
			wantErr: orders.ErrInvalidContact,
		},
		{name: "zero_quantity", req: f.request(item(f.apple, 1), item(f.banana, 0)), wantErr: orders.ErrInvalidQuantity},
		{name: "quantity_over_cap", req: f.request(item(f.apple, 1), item(f.banana, orders.MaxQuantity+1)), wantErr: orders.ErrInvalidQuantity},
		{
			name:    "unknown_product",
			req:     f.request(item(f.apple, 1), orders.ItemInput{ProductID: ghost, Quantity: 1}),
			wantErr: orders.ErrProductNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _, err := co.CreateFromItems(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, o)
			assert.Equal(t, 10, f.stock(t, f.apple.ID))
			assert.Equal(t, 1, f.stock(t, f.banana.ID))
		})
	}
}

func TestCheckout_CreateFromCart(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.banana.ID, 1)
	f.addToCart(t, f.apple.ID, 2)
	co := orders.NewCheckout(f.store, nil)

	o, _, err := co.CreateFromCart(context.Background(), f.request())
	require.NoError(t, err)

	require.Len(t, o.Items, 2)
	assert.Equal(t, f.banana.ID, o.Items[0].ProductID, "items follow cart order")
	assert.Equal(t, f.apple.ID, o.Items[1].ProductID)
	assert.Empty(t, f.cartLines(t))
	assert.Equal(t, 8, f.stock(t, f.apple.ID))

	// harga di order tidak ikut berubah saat katalog berubah
	f.store.SeedProduct(orders.Product{ID: f.apple.ID, Name: "Apple", Price: decimal.RequireFromString("9.99"), Stock: 8})
	got, err := orders.NewService(f.store, nil).Get(context.Background(), orders.Requester{OwnerID: f.owner}, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[1].UnitPrice.Equal(decimal.RequireFromString("2.50")))
}

func TestCheckout_CreateFromCartFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.apple.ID, 2)
	f.addToCart(t, f.banana.ID, 5)
	co := orders.NewCheckout(f.store, nil)

	_, _, err := co.CreateFromCart(context.Background(), f.request())
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	lines := f.cartLines(t)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 5, lines[1].Quantity)
	assert.Equal(t, 10, f.stock(t, f.apple.ID))
}

func TestCheckout_CreateFromEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, _, err := orders.NewCheckout(f.store, nil).CreateFromCart(context.Background(), f.request())
	assert.ErrorIs(t, err, orders.ErrEmptyOrder)
}

func TestCheckout_VanishedProductInCart(t *testing.T) {
	f := newFixture(t)
	f.addToCart(t, f.apple.ID, 1)
	f.addToCart(t, f.banana.ID, 1)
	f.store.DeleteProduct(f.banana.ID)

	_, _, err := orders.NewCheckout(f.store, nil).CreateFromCart(context.Background(), f.request())
	var pnf *orders.ProductNotFoundError
	require.True(t, errors.As(err, &pnf))
	assert.Equal(t, f.banana.ID, pnf.ProductID)
	assert.Equal(t, 10, f.stock(t, f.apple.ID))
	assert.Len(t, f.cartLines(t), 2)
}

func TestCheckout_IdempotencyKeyReplays(t *testing.T) {
	f := newFixture(t)
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, eventOfType(orders.EventOrderCreated)).Return(nil).Twice()
	co := orders.NewCheckout(f.store, pub)

	req := f.request(item(f.apple, 2))
	req.IdempotencyKey = "req-123"

	first, replayed, err := co.CreateFromItems(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, replayed)

	second, replayed, err := co.CreateFromItems(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 8, f.stock(t, f.apple.ID), "stock reserved once")

	// key yang sama milik owner lain tidak bentrok
	req.OwnerID = f.other
	third, replayed, err := co.CreateFromItems(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.NotEqual(t, first.ID, third.ID)
	pub.AssertNumberOfCalls(t, "Publish", 2)
}

func TestCheckout_PublishFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	o, _, err := orders.NewCheckout(f.store, pub).CreateFromItems(context.Background(), f.request(item(f.apple, 1)))
	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Equal(t, 9, f.stock(t, f.apple.ID))
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	co := orders.NewCheckout(f.store, nil)

	const buyers = 16
	owners := make([]uuid.UUID, buyers)
	for i := range owners {
		owners[i] = uuid.New()
		f.store.SeedOwner(owners[i])
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for _, owner := range owners {
		wg.Add(1)
		go func(owner uuid.UUID) {
			defer wg.Done()
			req := f.request(item(f.banana, 1))
			req.OwnerID = owner
			_, _, err := co.CreateFromItems(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, orders.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(owner)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, buyers-1, rejected)
	assert.Equal(t, 0, f.stock(t, f.banana.ID))
}
