package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxQuantity caps a single line; the quantity columns are 32-bit.
const MaxQuantity = 100_000

// ValidQuantity reports whether qty is in [1, MaxQuantity].
func ValidQuantity(qty int) bool { return qty >= 1 && qty <= MaxQuantity }

// Product is the catalog's view of an item. The core only reads it; stock is
// mutated through the Ledger.
type Product struct {
	ID    uuid.UUID
	Name  string
	Price decimal.Decimal
	Stock int
}

// CartLine is one (product, quantity) entry in an owner's cart. Prices are
// never stored on the line; they are joined from the catalog on every read.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
	AddedAt   time.Time
}

// Cart is the priced snapshot returned to callers.
type Cart struct {
	OwnerID    uuid.UUID
	Items      []PricedLine
	TotalPrice decimal.Decimal
}

// PricedLine is a cart line with the live unit price. Available is false when
// the product no longer exists in the catalog; such lines carry a zero price
// and are left out of the total.
type PricedLine struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Available bool
}

type Order struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Address        string
	Phone          string
	Status         Status
	OrderDate      time.Time
	UpdatedAt      time.Time
	IdempotencyKey string
	Items          []OrderItem
}

// OrderItem is immutable once the order exists. UnitPrice is the catalog
// price captured when the line was reserved.
type OrderItem struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Total sums the captured line prices.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// ItemInput is a requested order line.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// Requester identifies who is acting on an order.
type Requester struct {
	OwnerID uuid.UUID
	Admin   bool
}

func (r Requester) canAccess(o *Order) bool {
	return r.Admin || o.OwnerID == r.OwnerID
}
