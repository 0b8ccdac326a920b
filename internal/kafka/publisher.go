package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// OrderEventPublisher implements orders.Publisher on top of a Producer.
type OrderEventPublisher struct {
	producer *Producer
	service  string
	now      func() time.Time
}

func NewOrderEventPublisher(p *Producer, service string) *OrderEventPublisher {
	return &OrderEventPublisher{producer: p, service: service, now: time.Now}
}

func (e *OrderEventPublisher) Publish(ctx context.Context, ev orders.Event) error {
	key, value, headers, err := e.encode(ev)
	if err != nil {
		return err
	}
	return e.producer.Publish(ctx, key, value, headers...)
}

func (e *OrderEventPublisher) encode(ev orders.Event) ([]byte, []byte, []kafka.Header, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode %s payload: %w", ev.Type, err)
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  orders.EventVersion,
		OccurredAt:    e.now().UTC(),
		Producer:      e.service,
		TraceID:       ev.TraceID,
		CorrelationID: ev.OrderID.String(),
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("encode %s envelope: %w", ev.Type, err)
	}
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(ev.Type)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(orders.EventVersion))},
	}
	return orders.PartitionKey(ev.OrderID.String()), value, headers, nil
}
