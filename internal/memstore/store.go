// Package memstore is an in-process orders.Store. A transaction works on a
// private copy of the state and swaps it in on success, so a failed unit of
// work leaves nothing behind.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/google/uuid"
)

type Store struct {
	mu    sync.Mutex
	state *state
	seq   int64
	now   func() time.Time
}

type state struct {
	owners   map[uuid.UUID]struct{}
	products map[uuid.UUID]orders.Product
	carts    map[uuid.UUID][]orders.CartLine
	orders   map[uuid.UUID]storedOrder
}

type storedOrder struct {
	order orders.Order
	seq   int64
}

func New() *Store {
	return &Store{
		state: &state{
			owners:   make(map[uuid.UUID]struct{}),
			products: make(map[uuid.UUID]orders.Product),
			carts:    make(map[uuid.UUID][]orders.CartLine),
			orders:   make(map[uuid.UUID]storedOrder),
		},
		now: time.Now,
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", orders.ErrTransactionFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{store: s, st: s.state.clone(), seq: s.seq}
	if err := fn(ctx, t); err != nil {
		return err
	}
	s.state = t.st
	s.seq = t.seq
	return nil
}

// SeedOwner registers an owner id.
func (s *Store) SeedOwner(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.owners[id] = struct{}{}
}

// SeedProduct inserts or replaces a catalog entry.
func (s *Store) SeedProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

// DeleteProduct drops a product from the catalog, as a catalog admin would.
func (s *Store) DeleteProduct(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.state.products, id)
}

// Stock reports the current stock of a product.
func (s *Store) Stock(id uuid.UUID) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	return p.Stock, ok
}

func (st *state) clone() *state {
	out := &state{
		owners:   make(map[uuid.UUID]struct{}, len(st.owners)),
		products: make(map[uuid.UUID]orders.Product, len(st.products)),
		carts:    make(map[uuid.UUID][]orders.CartLine, len(st.carts)),
		orders:   make(map[uuid.UUID]storedOrder, len(st.orders)),
	}
	for k := range st.owners {
		out.owners[k] = struct{}{}
	}
	for k, v := range st.products {
		out.products[k] = v
	}
	for k, v := range st.carts {
		out.carts[k] = append([]orders.CartLine(nil), v...)
	}
	// items are never mutated in place, sharing the backing array is fine
	for k, v := range st.orders {
		out.orders[k] = v
	}
	return out
}

type tx struct {
	store *Store
	st    *state
	seq   int64
}

func (t *tx) Owners() orders.OwnerRepository { return ownerRepo{t} }
func (t *tx) Catalog() orders.Catalog        { return catalog{t} }
func (t *tx) Inventory() orders.Ledger       { return ledger{t} }
func (t *tx) Carts() orders.CartRepository   { return cartRepo{t} }
func (t *tx) Orders() orders.Repository      { return orderRepo{t} }

type ownerRepo struct{ t *tx }

func (r ownerRepo) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := r.t.st.owners[id]
	return ok, nil
}

type catalog struct{ t *tx }

func (c catalog) GetProduct(_ context.Context, id uuid.UUID) (orders.Product, error) {
	p, ok := c.t.st.products[id]
	if !ok {
		return orders.Product{}, &orders.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

func (c catalog) GetProducts(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]orders.Product, error) {
	out := make(map[uuid.UUID]orders.Product, len(ids))
	for _, id := range ids {
		if p, ok := c.t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type ledger struct{ t *tx }

func (l ledger) CheckAvailability(_ context.Context, id uuid.UUID, qty int) (bool, error) {
	if !orders.ValidQuantity(qty) {
		return false, orders.ErrInvalidQuantity
	}
	p, ok := l.t.st.products[id]
	return ok && p.Stock >= qty, nil
}

func (l ledger) Reserve(_ context.Context, id uuid.UUID, qty int) (int, error) {
	if !orders.ValidQuantity(qty) {
		return 0, orders.ErrInvalidQuantity
	}
	p, ok := l.t.st.products[id]
	if !ok {
		return 0, &orders.ProductNotFoundError{ProductID: id}
	}
	if p.Stock < qty {
		return 0, &orders.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	l.t.st.products[id] = p
	return p.Stock, nil
}

func (l ledger) Release(_ context.Context, id uuid.UUID, qty int) error {
	if !orders.ValidQuantity(qty) {
		return orders.ErrInvalidQuantity
	}
	p, ok := l.t.st.products[id]
	if !ok {
		return nil
	}
	p.Stock += qty
	l.t.st.products[id] = p
	return nil
}

type cartRepo struct{ t *tx }

func (r cartRepo) Ensure(_ context.Context, owner uuid.UUID) error {
	if _, ok := r.t.st.carts[owner]; !ok {
		r.t.st.carts[owner] = []orders.CartLine{}
	}
	return nil
}

func (r cartRepo) Lines(_ context.Context, owner uuid.UUID) ([]orders.CartLine, error) {
	return append([]orders.CartLine(nil), r.t.st.carts[owner]...), nil
}

func (r cartRepo) Increment(ctx context.Context, owner, product uuid.UUID, qty int) (int, error) {
	lines := r.t.st.carts[owner]
	for i := range lines {
		if lines[i].ProductID == product {
			lines[i].Quantity += qty
			return lines[i].Quantity, nil
		}
	}
	return r.Set(ctx, owner, product, qty)
}

func (r cartRepo) Set(_ context.Context, owner, product uuid.UUID, qty int) (int, error) {
	lines := r.t.st.carts[owner]
	for i := range lines {
		if lines[i].ProductID == product {
			lines[i].Quantity = qty
			return qty, nil
		}
	}
	r.t.st.carts[owner] = append(lines, orders.CartLine{
		ProductID: product,
		Quantity:  qty,
		AddedAt:   r.t.store.now().UTC(),
	})
	return qty, nil
}

func (r cartRepo) Remove(_ context.Context, owner, product uuid.UUID) error {
	lines := r.t.st.carts[owner]
	out := lines[:0]
	for _, l := range lines {
		if l.ProductID != product {
			out = append(out, l)
		}
	}
	if lines != nil {
		r.t.st.carts[owner] = out
	}
	return nil
}

func (r cartRepo) Clear(_ context.Context, owner uuid.UUID) error {
	if _, ok := r.t.st.carts[owner]; ok {
		r.t.st.carts[owner] = []orders.CartLine{}
	}
	return nil
}

type orderRepo struct{ t *tx }

func (r orderRepo) Create(_ context.Context, o *orders.Order) error {
	if _, ok := r.t.st.orders[o.ID]; ok {
		return fmt.Errorf("memstore: order %s already exists", o.ID)
	}
	if o.IdempotencyKey != "" {
		for _, so := range r.t.st.orders {
			if so.order.OwnerID == o.OwnerID && so.order.IdempotencyKey == o.IdempotencyKey {
				return orders.ErrIdempotencyConflict
			}
		}
	}
	r.t.seq++
	r.t.st.orders[o.ID] = storedOrder{order: copyOrder(*o), seq: r.t.seq}
	return nil
}

func (r orderRepo) Get(_ context.Context, id uuid.UUID) (*orders.Order, error) {
	so, ok := r.t.st.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	o := copyOrder(so.order)
	return &o, nil
}

// GetForUpdate needs no extra locking: the store mutex is held for the whole
// transaction.
func (r orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*orders.Order, error) {
	return r.Get(ctx, id)
}

func (r orderRepo) FindByIdempotencyKey(_ context.Context, owner uuid.UUID, key string) (*orders.Order, error) {
	for _, so := range r.t.st.orders {
		if so.order.OwnerID == owner && so.order.IdempotencyKey == key {
			o := copyOrder(so.order)
			return &o, nil
		}
	}
	return nil, orders.ErrOrderNotFound
}

func (r orderRepo) ListByOwner(_ context.Context, owner uuid.UUID) ([]orders.Order, error) {
	return r.list(func(o orders.Order) bool { return o.OwnerID == owner }), nil
}

func (r orderRepo) ListAll(context.Context) ([]orders.Order, error) {
	return r.list(func(orders.Order) bool { return true }), nil
}

func (r orderRepo) list(keep func(orders.Order) bool) []orders.Order {
	matched := make([]storedOrder, 0)
	for _, so := range r.t.st.orders {
		if keep(so.order) {
			matched = append(matched, so)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.order.OrderDate.Equal(b.order.OrderDate) {
			return a.order.OrderDate.After(b.order.OrderDate)
		}
		return a.seq > b.seq
	})
	out := make([]orders.Order, 0, len(matched))
	for _, so := range matched {
		out = append(out, copyOrder(so.order))
	}
	return out
}

func (r orderRepo) Update(_ context.Context, o *orders.Order) error {
	so, ok := r.t.st.orders[o.ID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	so.order.Address = o.Address
	so.order.Phone = o.Phone
	so.order.Status = o.Status
	so.order.UpdatedAt = o.UpdatedAt
	r.t.st.orders[o.ID] = so
	return nil
}

func (r orderRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.t.st.orders[id]; !ok {
		return orders.ErrOrderNotFound
	}
	delete(r.t.st.orders, id)
	return nil
}

func copyOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.OrderItem(nil), o.Items...)
	return o
}
