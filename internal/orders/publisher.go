package orders

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Publisher emits lifecycle events after commit. Delivery is best effort:
// a failed publish never undoes the committed change.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func publish(ctx context.Context, pub Publisher, ev Event) {
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("event_type", ev.Type).
			Str("order_id", ev.OrderID.String()).
			Msg("publish order event")
	}
}
