package orders

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrOwnerNotFound       = errors.New("owner not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrEmptyOrder          = errors.New("order must contain at least one item")
	ErrInvalidQuantity     = errors.New("quantity must be between 1 and 100000")
	ErrInvalidContact      = errors.New("address and phone are required")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrAlreadyFinalized    = errors.New("order is already finalized")
	ErrForbidden           = errors.New("forbidden")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrIdempotencyConflict = errors.New("idempotency key already used")
)

// InsufficientStockError names the first line that could not be reserved.
// ProductName is filled in by checkout; the ledger only knows the id.
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID.String()
	}
	return fmt.Sprintf("insufficient stock for %q: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: %s", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }
