package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Update is a partial edit of an order. Nil fields are left unchanged; a
// non-nil Status must name a status, blank included.
type Update struct {
	Status  *string
	Address *string
	Phone   *string
}

// Service owns the order lifecycle after checkout.
type Service struct {
	store Store
	pub   Publisher
	now   func() time.Time
}

func NewService(store Store, pub Publisher) *Service {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Service{store: store, pub: pub, now: time.Now}
}

func (s *Service) Get(ctx context.Context, who Requester, id uuid.UUID) (*Order, error) {
	var out *Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		if !who.canAccess(o) {
			return ErrForbidden
		}
		out = o
		return nil
	})
	return out, err
}

// ListMine returns the requester's orders, newest first.
func (s *Service) ListMine(ctx context.Context, who Requester) ([]Order, error) {
	var out []Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Orders().ListByOwner(ctx, who.OwnerID)
		return err
	})
	return out, err
}

func (s *Service) ListAll(ctx context.Context, who Requester) ([]Order, error) {
	if !who.Admin {
		return nil, ErrForbidden
	}
	var out []Order
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.Orders().ListAll(ctx)
		return err
	})
	return out, err
}

// Transition moves an order to status. Cancelling releases every reserved
// line in the same transaction as the status write.
func (s *Service) Transition(ctx context.Context, who Requester, id uuid.UUID, status string) (*Order, error) {
	return s.Update(ctx, who, id, Update{Status: &status})
}

// Update applies u under a row lock. Checks run in this order: existence,
// ownership, status name, finalization, edge legality. A finalized order
// rejects every edit, contact changes included.
func (s *Service) Update(ctx context.Context, who Requester, id uuid.UUID, u Update) (*Order, error) {
	var (
		out      *Order
		from     Status
		released []OrderItem
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		released = nil

		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !who.canAccess(o) {
			return ErrForbidden
		}
		from = o.Status

		to := o.Status
		if u.Status != nil {
			if to, err = ParseStatus(*u.Status); err != nil {
				return err
			}
		}
		next, err := Next(o.Status, to)
		if err != nil {
			return err
		}

		if u.Address != nil {
			if strings.TrimSpace(*u.Address) == "" {
				return ErrInvalidContact
			}
			o.Address = strings.TrimSpace(*u.Address)
		}
		if u.Phone != nil {
			if strings.TrimSpace(*u.Phone) == "" {
				return ErrInvalidContact
			}
			o.Phone = strings.TrimSpace(*u.Phone)
		}

		if next == StatusCancelled && o.Status != StatusCancelled {
			if err := releaseItems(ctx, tx, o); err != nil {
				return err
			}
			released = o.Items
		}
		o.Status = next
		o.UpdatedAt = s.now().UTC()
		if err := tx.Orders().Update(ctx, o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("order_id", id.String()).Msg("order update rejected")
		return nil, err
	}

	if out.Status != from {
		log.Info().
			Str("order_id", out.ID.String()).
			Str("from", from.String()).
			Str("to", out.Status.String()).
			Msg("order status changed")
		publish(ctx, s.pub, statusChanged(out, from))
		if out.Status == StatusCancelled {
			publish(ctx, s.pub, orderCancelled(out, released))
		}
	}
	return out, nil
}

// Delete removes an order. Stock is returned unless the order already
// reached a terminal state: a cancelled order released it on cancel and a
// completed one consumed it.
func (s *Service) Delete(ctx context.Context, who Requester, id uuid.UUID) error {
	var (
		deleted  *Order
		released []OrderItem
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		released = nil

		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !who.canAccess(o) {
			return ErrForbidden
		}
		if !o.Status.IsFinal() {
			if err := releaseItems(ctx, tx, o); err != nil {
				return err
			}
			released = o.Items
		}
		if err := tx.Orders().Delete(ctx, o.ID); err != nil {
			return err
		}
		deleted = o
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Str("order_id", id.String()).Int("released_lines", len(released)).Msg("order deleted")
	publish(ctx, s.pub, orderDeleted(deleted, released))
	return nil
}

func releaseItems(ctx context.Context, tx Tx, o *Order) error {
	for _, it := range o.Items {
		if err := tx.Inventory().Release(ctx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}
