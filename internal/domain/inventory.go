package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrQuantityNotPositive signals a reserve/release/commit call with a
// non-positive quantity.
var ErrQuantityNotPositive = errors.New("inventory: quantity must be positive")

// ErrReservationExceeded signals a release or commit of more units than are
// currently reserved for the product.
var ErrReservationExceeded = errors.New("inventory: quantity exceeds reserved amount")

// InsufficientStockError reports a reservation attempt beyond the available
// quantity, carrying the figures the caller needs to inform the end user.
type InsufficientStockError struct {
	ProductCode string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: requested %d, available %d", e.ProductCode, e.Requested, e.Available)
}

// InventoryItem tracks the physical and reserved unit counters for one
// product. Counters are only ever mutated through Reserve, Release and
// Commit, which preserve 0 <= Reserved <= OnHand at all times.
type InventoryItem struct {
	ProductCode string
	ProductName string
	OnHand      int
	Reserved    int
	Version     int64
	UpdatedAt   time.Time
}

// Available is the quantity that can still be reserved.
func (i *InventoryItem) Available() int {
	return i.OnHand - i.Reserved
}

// Reserve earmarks quantity units for an unconfirmed order.
func (i *InventoryItem) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrQuantityNotPositive
	}
	if available := i.Available(); available < quantity {
		return &InsufficientStockError{ProductCode: i.ProductCode, Requested: quantity, Available: available}
	}
	i.Reserved += quantity
	return nil
}

// Release returns quantity reserved units to availability.
func (i *InventoryItem) Release(quantity int) error {
	if quantity <= 0 {
		return ErrQuantityNotPositive
	}
	if quantity > i.Reserved {
		return fmt.Errorf("%w: cannot release %d of %s, reserved %d", ErrReservationExceeded, quantity, i.ProductCode, i.Reserved)
	}
	i.Reserved -= quantity
	return nil
}

// Commit converts quantity reserved units into a permanent stock deduction.
func (i *InventoryItem) Commit(quantity int) error {
	if quantity <= 0 {
		return ErrQuantityNotPositive
	}
	if quantity > i.Reserved {
		return fmt.Errorf("%w: cannot commit %d of %s, reserved %d", ErrReservationExceeded, quantity, i.ProductCode, i.Reserved)
	}
	i.Reserved -= quantity
	i.OnHand -= quantity
	return nil
}
