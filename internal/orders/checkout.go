package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Request is a checkout request. Items is ignored by CreateFromCart.
type Request struct {
	OwnerID        uuid.UUID
	Address        string
	Phone          string
	Items          []ItemInput
	IdempotencyKey string
}

// Checkout turns a cart or an explicit item list into an order. Reserving
// stock, writing the order and clearing the cart happen in one transaction:
// either all of it is visible afterwards or none of it is.
type Checkout struct {
	store Store
	pub   Publisher
	now   func() time.Time
}

func NewCheckout(store Store, pub Publisher) *Checkout {
	if pub == nil {
		pub = NopPublisher{}
	}
	return &Checkout{store: store, pub: pub, now: time.Now}
}

// CreateFromItems places an order for the given lines. The bool result is
// true when an earlier order with the same idempotency key was returned
// instead of creating a new one.
func (c *Checkout) CreateFromItems(ctx context.Context, req Request) (*Order, bool, error) {
	return c.create(ctx, req, false)
}

// CreateFromCart places an order for the owner's cart lines, in cart order,
// and empties the cart.
func (c *Checkout) CreateFromCart(ctx context.Context, req Request) (*Order, bool, error) {
	return c.create(ctx, req, true)
}

func (c *Checkout) create(ctx context.Context, req Request, fromCart bool) (*Order, bool, error) {
	o, replayed, err := c.attempt(ctx, req, fromCart)
	if errors.Is(err, ErrIdempotencyConflict) {
		// another request with the same key committed first; replay it
		o, replayed, err = c.attempt(ctx, req, fromCart)
	}
	if err != nil {
		ev := log.Debug()
		if !isBusinessError(err) {
			ev = log.Error()
		}
		ev.Err(err).Str("owner_id", req.OwnerID.String()).Bool("from_cart", fromCart).Msg("checkout failed")
		return nil, false, err
	}
	if replayed {
		log.Info().Str("order_id", o.ID.String()).Str("idempotency_key", req.IdempotencyKey).Msg("checkout replayed")
		return o, true, nil
	}

	log.Info().
		Str("order_id", o.ID.String()).
		Str("owner_id", o.OwnerID.String()).
		Int("items", len(o.Items)).
		Str("total", o.Total().StringFixed(2)).
		Msg("order created")
	publish(ctx, c.pub, orderCreated(o))
	return o, false, nil
}

func (c *Checkout) attempt(ctx context.Context, req Request, fromCart bool) (*Order, bool, error) {
	var (
		out      *Order
		replayed bool
	)
	err := c.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		out, replayed = nil, false

		ok, err := tx.Owners().Exists(ctx, req.OwnerID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrOwnerNotFound
		}

		if req.IdempotencyKey != "" {
			prev, err := tx.Orders().FindByIdempotencyKey(ctx, req.OwnerID, req.IdempotencyKey)
			switch {
			case err == nil:
				out, replayed = prev, true
				return nil
			case !errors.Is(err, ErrOrderNotFound):
				return err
			}
		}

		items := req.Items
		if fromCart {
			lines, err := tx.Carts().Lines(ctx, req.OwnerID)
			if err != nil {
				return err
			}
			items = make([]ItemInput, 0, len(lines))
			for _, l := range lines {
				items = append(items, ItemInput{ProductID: l.ProductID, Quantity: l.Quantity})
			}
		}
		if len(items) == 0 {
			return ErrEmptyOrder
		}
		if strings.TrimSpace(req.Address) == "" || strings.TrimSpace(req.Phone) == "" {
			return ErrInvalidContact
		}

		now := c.now().UTC()
		o := &Order{
			ID:             uuid.New(),
			OwnerID:        req.OwnerID,
			Address:        strings.TrimSpace(req.Address),
			Phone:          strings.TrimSpace(req.Phone),
			Status:         StatusCreated,
			OrderDate:      now,
			UpdatedAt:      now,
			IdempotencyKey: req.IdempotencyKey,
			Items:          make([]OrderItem, 0, len(items)),
		}

		// reserve per baris; gagal di baris ke-k -> rollback semua
		for _, in := range items {
			if !ValidQuantity(in.Quantity) {
				return fmt.Errorf("%w: product %s", ErrInvalidQuantity, in.ProductID)
			}
			p, err := tx.Catalog().GetProduct(ctx, in.ProductID)
			if err != nil {
				return err
			}
			if _, err := tx.Inventory().Reserve(ctx, p.ID, in.Quantity); err != nil {
				var ise *InsufficientStockError
				if errors.As(err, &ise) {
					ise.ProductName = p.Name
				}
				return err
			}
			o.Items = append(o.Items, OrderItem{ProductID: p.ID, Quantity: in.Quantity, UnitPrice: p.Price})
		}

		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if fromCart {
			if err := tx.Carts().Clear(ctx, req.OwnerID); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, replayed, nil
}

// isBusinessError reports whether err is an expected rejection rather than
// an infrastructure failure.
func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrOwnerNotFound, ErrProductNotFound, ErrOrderNotFound, ErrInsufficientStock,
		ErrEmptyOrder, ErrInvalidQuantity, ErrInvalidContact, ErrInvalidStatus,
		ErrInvalidTransition, ErrAlreadyFinalized, ErrForbidden,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
