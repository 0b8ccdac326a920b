package cartclient

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot is what a View currently shows. Tentative is true while a local
// guess is waiting for the server.
type Snapshot struct {
	Cart      Cart
	Tentative bool
}

// View keeps a local copy of the owner's cart. Each mutation shows a guess
// right away, then replaces it with the server's cart. When the server
// rejects the mutation the guess is dropped and the cart is fetched again;
// the guess is never undone locally.
//
// Mutations run one at a time. Snapshot never waits on the network.
type View struct {
	client *Client

	opMu sync.Mutex

	mu       sync.RWMutex
	state    Snapshot
	onChange func(Snapshot)
}

func NewView(c *Client) *View {
	return &View{client: c}
}

// OnChange registers fn to receive every new snapshot, guesses included. fn
// runs on the goroutine performing the mutation.
func (v *View) OnChange(fn func(Snapshot)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Snapshot{Cart: v.state.Cart.clone(), Tentative: v.state.Tentative}
}

// Refresh replaces the view with the server's cart.
func (v *View) Refresh(ctx context.Context) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()
	return v.refetch(ctx)
}

func (v *View) Add(ctx context.Context, productID uuid.UUID, qty int) error {
	return v.mutate(ctx,
		func(c Cart) Cart {
			for i := range c.Items {
				if c.Items[i].ProductID == productID {
					c.Items[i].Quantity += qty
					return c
				}
			}
			c.Items = append(c.Items, Line{ProductID: productID, Quantity: qty, Available: true})
			return c
		},
		func(ctx context.Context) (*Cart, error) {
			c, err := v.client.Add(ctx, productID, qty)
			return &c, err
		})
}

func (v *View) SetQuantity(ctx context.Context, productID uuid.UUID, qty int) error {
	return v.mutate(ctx,
		func(c Cart) Cart {
			if qty <= 0 {
				return without(c, productID)
			}
			for i := range c.Items {
				if c.Items[i].ProductID == productID {
					c.Items[i].Quantity = qty
					return c
				}
			}
			c.Items = append(c.Items, Line{ProductID: productID, Quantity: qty, Available: true})
			return c
		},
		func(ctx context.Context) (*Cart, error) {
			c, err := v.client.SetQuantity(ctx, productID, qty)
			return &c, err
		})
}

func (v *View) Remove(ctx context.Context, productID uuid.UUID) error {
	return v.mutate(ctx,
		func(c Cart) Cart { return without(c, productID) },
		func(ctx context.Context) (*Cart, error) { return nil, v.client.Remove(ctx, productID) })
}

func (v *View) Clear(ctx context.Context) error {
	return v.mutate(ctx,
		func(c Cart) Cart {
			c.Items = nil
			return c
		},
		func(ctx context.Context) (*Cart, error) { return nil, v.client.Clear(ctx) })
}

// mutate shows guess(current), runs call, then settles on the server's
// cart. A nil cart from call means the endpoint returned no body and the
// cart is fetched. On failure the original error is returned, joined with
// the refetch error if that failed too.
func (v *View) mutate(ctx context.Context, guess func(Cart) Cart, call func(context.Context) (*Cart, error)) error {
	v.opMu.Lock()
	defer v.opMu.Unlock()

	confirmed := v.Snapshot().Cart
	tentative := guess(confirmed.clone())
	tentative.TotalPrice = localTotal(tentative)
	v.set(Snapshot{Cart: tentative, Tentative: true})

	c, err := call(ctx)
	if err != nil {
		if rerr := v.refetch(ctx); rerr != nil {
			// server unreachable: fall back to the last cart it confirmed
			v.set(Snapshot{Cart: confirmed})
			return errors.Join(err, rerr)
		}
		return err
	}
	if c == nil {
		if err := v.refetch(ctx); err != nil {
			v.set(Snapshot{Cart: confirmed})
			return err
		}
		return nil
	}
	v.set(Snapshot{Cart: *c})
	return nil
}

func (v *View) refetch(ctx context.Context) error {
	c, err := v.client.Get(ctx)
	if err != nil {
		return err
	}
	v.set(Snapshot{Cart: c})
	return nil
}

func (v *View) set(s Snapshot) {
	v.mu.Lock()
	v.state = s
	fn := v.onChange
	v.mu.Unlock()
	if fn != nil {
		fn(Snapshot{Cart: s.Cart.clone(), Tentative: s.Tentative})
	}
}

func without(c Cart, productID uuid.UUID) Cart {
	out := c.Items[:0]
	for _, l := range c.Items {
		if l.ProductID != productID {
			out = append(out, l)
		}
	}
	c.Items = out
	return c
}

// localTotal prices a guess with the unit prices already known. Lines new
// to the view have no price until the server answers.
func localTotal(c Cart) decimal.Decimal {
	total := decimal.Zero
	for i := range c.Items {
		l := &c.Items[i]
		l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		if l.Available {
			total = total.Add(l.LineTotal)
		}
	}
	return total
}
