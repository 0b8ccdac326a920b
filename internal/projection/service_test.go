package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) SetStatus(ctx context.Context, id uuid.UUID, e redisx.StatusEntry) error {
	return m.Called(ctx, id, e).Error(0)
}

func (m *mockCache) EvictStatus(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCache) MarkProcessed(ctx context.Context, service, eventID string) (bool, error) {
	args := m.Called(ctx, service, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) ForgetProcessed(ctx context.Context, service, eventID string) error {
	return m.Called(ctx, service, eventID).Error(0)
}

func message(t *testing.T, eventID, typ string, payload any) kafkago.Message {
	t.Helper()
	b := kafkax.MustMarshal(orders.Envelope{
		EventID:      eventID,
		EventType:    typ,
		EventVersion: 1,
		OccurredAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload:      kafkax.MustMarshal(payload),
	})
	return kafkago.Message{Value: b}
}

func TestHandleOrderEvent_StatusChanged(t *testing.T) {
	cache := new(mockCache)
	svc := &Service{Cache: cache, ServiceName: "projector"}
	orderID, owner := uuid.New(), uuid.New()
	changedAt := time.Date(2025, 1, 2, 3, 0, 0, 0, time.UTC)

	cache.On("MarkProcessed", mock.Anything, "projector", "ev-1").Return(true, nil)
	cache.On("SetStatus", mock.Anything, orderID, mock.MatchedBy(func(e redisx.StatusEntry) bool {
		// timestamp of the change, not of the publish
		return e.Status == "Cancelled" && e.OwnerID == owner.String() && e.UpdatedAt.Equal(changedAt)
	})).Return(nil)

	err := svc.HandleOrderEvent(context.Background(), message(t, "ev-1", orders.EventOrderStatusChanged,
		orders.OrderStatusChangedPayload{OrderID: orderID.String(), OwnerID: owner.String(), From: "Created", To: "Cancelled", UpdatedAt: changedAt}))
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestHandleOrderEvent_FallsBackToOccurredAt(t *testing.T) {
	cache := new(mockCache)
	svc := &Service{Cache: cache, ServiceName: "projector"}
	orderID := uuid.New()

	cache.On("MarkProcessed", mock.Anything, "projector", "ev-5").Return(true, nil)
	cache.On("SetStatus", mock.Anything, orderID, mock.MatchedBy(func(e redisx.StatusEntry) bool {
		return e.UpdatedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	})).Return(nil)

	err := svc.HandleOrderEvent(context.Background(), message(t, "ev-5", orders.EventOrderStatusChanged,
		orders.OrderStatusChangedPayload{OrderID: orderID.String(), To: "InProgress"}))
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestHandleOrderEvent_Duplicate(t *testing.T) {
	cache := new(mockCache)
	svc := &Service{Cache: cache, ServiceName: "projector"}
	cache.On("MarkProcessed", mock.Anything, "projector", "ev-2").Return(false, nil)

	err := svc.HandleOrderEvent(context.Background(), message(t, "ev-2", orders.EventOrderCreated,
		orders.OrderCreatedPayload{OrderID: uuid.NewString(), Status: "Created"}))
	require.NoError(t, err)
	cache.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleOrderEvent_DeletedEvicts(t *testing.T) {
	cache := new(mockCache)
	svc := &Service{Cache: cache, ServiceName: "projector"}
	orderID := uuid.New()
	cache.On("MarkProcessed", mock.Anything, "projector", "ev-3").Return(true, nil)
	cache.On("EvictStatus", mock.Anything, orderID).Return(nil)

	err := svc.HandleOrderEvent(context.Background(), message(t, "ev-3", orders.EventOrderDeleted,
		orders.OrderDeletedPayload{OrderID: orderID.String()}))
	require.NoError(t, err)
	cache.AssertExpectations(t)
}

func TestHandleOrderEvent_FailureForgetsDedupMark(t *testing.T) {
	cache := new(mockCache)
	svc := &Service{Cache: cache, ServiceName: "projector"}
	orderID := uuid.New()
	cache.On("MarkProcessed", mock.Anything, "projector", "ev-4").Return(true, nil)
	cache.On("SetStatus", mock.Anything, orderID, mock.Anything).Return(errors.New("redis down"))
	cache.On("ForgetProcessed", mock.Anything, "projector", "ev-4").Return(nil)

	err := svc.HandleOrderEvent(context.Background(), message(t, "ev-4", orders.EventOrderCreated,
		orders.OrderCreatedPayload{OrderID: orderID.String(), Status: "Created"}))
	assert.Error(t, err)
	cache.AssertExpectations(t)
}

func TestHandleOrderEvent_SkipsGarbage(t *testing.T) {
	cache := new(mockCache)
	svc := &Service{Cache: cache, ServiceName: "projector"}
	require.NoError(t, svc.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("not json")}))
	cache.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
}
