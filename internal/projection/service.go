// Package projection keeps read-side views of orders up to date from the
// order event stream.
package projection

import (
	"context"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

// Cache is the part of redisx.OrderCache the projector writes to.
type Cache interface {
	SetStatus(ctx context.Context, orderID uuid.UUID, e redisx.StatusEntry) error
	EvictStatus(ctx context.Context, orderID uuid.UUID) error
	MarkProcessed(ctx context.Context, service, eventID string) (bool, error)
	ForgetProcessed(ctx context.Context, service, eventID string) error
}

type Service struct {
	Cache       Cache
	ServiceName string
}

// HandleOrderEvent: dipasang sebagai handler consumer.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope; pesan rusak di-skip supaya offset tetap jalan
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		log.Warn().Err(err).Int64("offset", m.Offset).Msg("skipping undecodable order event")
		return nil
	}

	// 2) dedup via Redis (pakai event_id)
	first, err := s.Cache.MarkProcessed(ctx, s.ServiceName, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		log.Debug().Str("event_id", env.EventID).Msg("duplicate order event")
		return nil
	}

	if err := s.apply(ctx, env); err != nil {
		if ferr := s.Cache.ForgetProcessed(ctx, s.ServiceName, env.EventID); ferr != nil {
			log.Warn().Err(ferr).Str("event_id", env.EventID).Msg("forget dedup mark")
		}
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, env orders.Envelope) error {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.setStatus(ctx, p.OrderID, p.OwnerID, p.Status, firstSet(p.OrderDate, env.OccurredAt))

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		return s.setStatus(ctx, p.OrderID, p.OwnerID, p.To, firstSet(p.UpdatedAt, env.OccurredAt))

	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		log.Info().Str("order_id", p.OrderID).Int("released_lines", len(p.Released)).Msg("order cancelled, stock released")
		return nil

	case orders.EventOrderDeleted:
		p, err := kafkax.UnwrapPayload[orders.OrderDeletedPayload](env.Payload)
		if err != nil {
			return err
		}
		id, err := uuid.Parse(p.OrderID)
		if err != nil {
			return fmt.Errorf("projection: order id: %w", err)
		}
		return s.Cache.EvictStatus(ctx, id)
	}
	return nil // ignore
}

// setStatus writes with the order's own timestamp so an event handled late
// cannot replace a newer entry written by the API.
func (s *Service) setStatus(ctx context.Context, orderID, ownerID, status string, at time.Time) error {
	id, err := uuid.Parse(orderID)
	if err != nil {
		return fmt.Errorf("projection: order id: %w", err)
	}
	return s.Cache.SetStatus(ctx, id, redisx.StatusEntry{Status: status, OwnerID: ownerID, UpdatedAt: at})
}

func firstSet(ts ...time.Time) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t
		}
	}
	return time.Time{}
}
