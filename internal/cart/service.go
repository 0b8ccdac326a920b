// Package cart manages per-owner shopping carts. Lines hold only product and
// quantity; prices are joined from the catalog on every read, so a snapshot
// always reflects current catalog prices.
package cart

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Service struct {
	store orders.Store
}

func NewService(store orders.Store) *Service {
	return &Service{store: store}
}

// Get returns the owner's cart, creating it on first access.
func (s *Service) Get(ctx context.Context, owner uuid.UUID) (orders.Cart, error) {
	var out orders.Cart
	err := s.store.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := ensureCart(ctx, tx, owner); err != nil {
			return err
		}
		var err error
		out, err = snapshot(ctx, tx, owner)
		return err
	})
	return out, err
}

// Items returns the priced lines only.
func (s *Service) Items(ctx context.Context, owner uuid.UUID) ([]orders.PricedLine, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	return c.Items, nil
}

// Total is the sum of live price times quantity over lines whose product
// still exists.
func (s *Service) Total(ctx context.Context, owner uuid.UUID) (decimal.Decimal, error) {
	c, err := s.Get(ctx, owner)
	if err != nil {
		return decimal.Zero, err
	}
	return c.TotalPrice, nil
}

// AddOrIncrement adds qty to the line for product, creating it if needed.
// The resulting quantity is checked against current stock; this is advisory
// only; checkout re-checks when it reserves.
func (s *Service) AddOrIncrement(ctx context.Context, owner, product uuid.UUID, qty int) (orders.Cart, error) {
	if !orders.ValidQuantity(qty) {
		return orders.Cart{}, orders.ErrInvalidQuantity
	}
	var out orders.Cart
	err := s.store.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := ensureCart(ctx, tx, owner); err != nil {
			return err
		}
		p, err := tx.Catalog().GetProduct(ctx, product)
		if err != nil {
			return err
		}
		n, err := tx.Carts().Increment(ctx, owner, product, qty)
		if err != nil {
			return err
		}
		if n > orders.MaxQuantity {
			return orders.ErrInvalidQuantity
		}
		if err := softCheck(ctx, tx, p, n); err != nil {
			return err
		}
		out, err = snapshot(ctx, tx, owner)
		return err
	})
	if err != nil {
		return orders.Cart{}, err
	}
	log.Debug().Str("owner_id", owner.String()).Str("product_id", product.String()).Int("qty", qty).Msg("cart line incremented")
	return out, nil
}

// SetQuantity overwrites the line's quantity. qty <= 0 removes the line.
func (s *Service) SetQuantity(ctx context.Context, owner, product uuid.UUID, qty int) (orders.Cart, error) {
	if qty <= 0 {
		return s.Remove(ctx, owner, product)
	}
	if qty > orders.MaxQuantity {
		return orders.Cart{}, orders.ErrInvalidQuantity
	}
	var out orders.Cart
	err := s.store.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := ensureCart(ctx, tx, owner); err != nil {
			return err
		}
		p, err := tx.Catalog().GetProduct(ctx, product)
		if err != nil {
			return err
		}
		if err := softCheck(ctx, tx, p, qty); err != nil {
			return err
		}
		if _, err := tx.Carts().Set(ctx, owner, product, qty); err != nil {
			return err
		}
		out, err = snapshot(ctx, tx, owner)
		return err
	})
	return out, err
}

// Remove drops the line if present.
func (s *Service) Remove(ctx context.Context, owner, product uuid.UUID) (orders.Cart, error) {
	var out orders.Cart
	err := s.store.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := ensureCart(ctx, tx, owner); err != nil {
			return err
		}
		if err := tx.Carts().Remove(ctx, owner, product); err != nil {
			return err
		}
		var err error
		out, err = snapshot(ctx, tx, owner)
		return err
	})
	return out, err
}

func (s *Service) Clear(ctx context.Context, owner uuid.UUID) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		if err := ensureCart(ctx, tx, owner); err != nil {
			return err
		}
		return tx.Carts().Clear(ctx, owner)
	})
}

// CheckAvailability is an advisory stock read for product pages.
func (s *Service) CheckAvailability(ctx context.Context, product uuid.UUID, qty int) (bool, error) {
	if !orders.ValidQuantity(qty) {
		return false, orders.ErrInvalidQuantity
	}
	var ok bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		var err error
		ok, err = tx.Inventory().CheckAvailability(ctx, product, qty)
		return err
	})
	return ok, err
}

func ensureCart(ctx context.Context, tx orders.Tx, owner uuid.UUID) error {
	ok, err := tx.Owners().Exists(ctx, owner)
	if err != nil {
		return err
	}
	if !ok {
		return orders.ErrOwnerNotFound
	}
	return tx.Carts().Ensure(ctx, owner)
}

func softCheck(ctx context.Context, tx orders.Tx, p orders.Product, qty int) error {
	ok, err := tx.Inventory().CheckAvailability(ctx, p.ID, qty)
	if err != nil {
		return fmt.Errorf("cart: availability: %w", err)
	}
	if !ok {
		return &orders.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Requested:   qty,
			Available:   p.Stock,
		}
	}
	return nil
}

func snapshot(ctx context.Context, tx orders.Tx, owner uuid.UUID) (orders.Cart, error) {
	lines, err := tx.Carts().Lines(ctx, owner)
	if err != nil {
		return orders.Cart{}, err
	}
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := tx.Catalog().GetProducts(ctx, ids)
	if err != nil {
		return orders.Cart{}, err
	}

	c := orders.Cart{OwnerID: owner, Items: make([]orders.PricedLine, 0, len(lines)), TotalPrice: decimal.Zero}
	for _, l := range lines {
		pl := orders.PricedLine{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: decimal.Zero, LineTotal: decimal.Zero}
		if p, ok := products[l.ProductID]; ok {
			pl.Available = true
			pl.UnitPrice = p.Price
			pl.LineTotal = p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
			c.TotalPrice = c.TotalPrice.Add(pl.LineTotal)
		}
		c.Items = append(c.Items, pl)
	}
	return c, nil
}
