package orders

import (
	"context"

	"github.com/google/uuid"
)

// Store runs fn as one unit of work. Every repository reached through tx
// shares the same transaction; returning an error rolls all of it back.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Owners() OwnerRepository
	Catalog() Catalog
	Inventory() Ledger
	Carts() CartRepository
	Orders() Repository
}

type OwnerRepository interface {
	Exists(ctx context.Context, ownerID uuid.UUID) (bool, error)
}

// Catalog is read-only. GetProduct returns *ProductNotFoundError for an
// unknown id; GetProducts silently omits unknown ids.
type Catalog interface {
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	GetProducts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
}

// Ledger is the only writer of products.stock.
//
// Reserve decrements stock iff enough is on hand, in a single conditional
// write, and returns what is left. Release adds stock back; a product that
// has since left the catalog is skipped.
type Ledger interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Reserve(ctx context.Context, productID uuid.UUID, qty int) (int, error)
	Release(ctx context.Context, productID uuid.UUID, qty int) error
}

// CartRepository stores (owner, product, quantity) lines. Increment and Set
// are upserts and return the resulting quantity.
type CartRepository interface {
	Ensure(ctx context.Context, ownerID uuid.UUID) error
	Lines(ctx context.Context, ownerID uuid.UUID) ([]CartLine, error)
	Increment(ctx context.Context, ownerID, productID uuid.UUID, qty int) (int, error)
	Set(ctx context.Context, ownerID, productID uuid.UUID, qty int) (int, error)
	Remove(ctx context.Context, ownerID, productID uuid.UUID) error
	Clear(ctx context.Context, ownerID uuid.UUID) error
}

// Repository persists orders with their items. Lookups return
// ErrOrderNotFound; Create returns ErrIdempotencyConflict when the owner
// already used the idempotency key.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id uuid.UUID) (*Order, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByIdempotencyKey(ctx context.Context, ownerID uuid.UUID, key string) (*Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}
