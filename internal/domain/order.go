package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidStatusTransition signals a requested status change that the
	// transition table forbids.
	ErrInvalidStatusTransition = errors.New("order: invalid status transition")
	// ErrOrderNotCancellable signals a cancel attempt on a non-pending order.
	ErrOrderNotCancellable = errors.New("order: only pending orders can be cancelled")
)

// OrderItem is a line of an order. The product name and unit price are
// snapshotted at order time and never track the live inventory record.
// Items are immutable once added to an order.
type OrderItem struct {
	ProductCode string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// NewOrderItem builds a line item with its total pre-computed as
// quantity x unit price, rounded half-up to two decimal places.
func NewOrderItem(productCode, productName string, quantity int, unitPrice decimal.Decimal) OrderItem {
	return OrderItem{
		ProductCode: productCode,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		LineTotal:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
	}
}

// Order is the aggregate root for a customer order. Items are owned by the
// order and stored inline; they have no identity or lifecycle of their own.
// Version carries the optimistic concurrency counter compared and incremented
// on every persisted write.
type Order struct {
	ID              string
	OrderNumber     string
	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	Status          OrderStatus
	TotalAmount     decimal.Decimal
	Items           []OrderItem
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AddItem appends the item and recomputes the derived order total.
func (o *Order) AddItem(item OrderItem) {
	o.Items = append(o.Items, item)
	o.recalculateTotal()
}

func (o *Order) recalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal)
	}
	o.TotalAmount = total.Round(2)
}

// UpdateStatus applies the requested transition. Requesting the current
// status is a no-op; anything the transition table forbids fails without
// mutating the order.
func (o *Order) UpdateStatus(target OrderStatus) error {
	if o.Status == target {
		return nil
	}
	if !o.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: order %s cannot move from %s to %s", ErrInvalidStatusTransition, o.OrderNumber, o.Status, target)
	}
	o.Status = target
	return nil
}

// Cancel moves a pending order to CANCELLED. The caller is responsible for
// releasing the inventory reservations held by the order's items.
func (o *Order) Cancel() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: order %s is %s", ErrOrderNotCancellable, o.OrderNumber, o.Status)
	}
	o.Status = OrderStatusCancelled
	return nil
}

// MarkProcessing promotes a pending order to PROCESSING and reports whether
// anything changed. Any other current status is a no-op, which makes the
// bulk promotion sweep safe to run repeatedly.
func (o *Order) MarkProcessing() bool {
	if o.Status != OrderStatusPending {
		return false
	}
	o.Status = OrderStatusProcessing
	return true
}
