package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/orderforge/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order         = domain.Order
	OrderItem     = domain.OrderItem
	OrderStatus   = domain.OrderStatus
	InventoryItem = domain.InventoryItem
)

// OrderService encapsulates the order lifecycle: creation with stock
// reservation, status transitions, cancellation, and the pending-order sweep.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderNumber string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	CancelOrder(ctx context.Context, orderNumber string) (Order, error)
	// PromotePendingOrders moves every PENDING order to PROCESSING, committing
	// the reserved stock, and returns how many orders were promoted.
	PromotePendingOrders(ctx context.Context) (int, error)
}

// InventoryService centralizes stock reservation, release, and commit workflows.
type InventoryService interface {
	Reserve(ctx context.Context, cmd InventoryAdjustmentCommand) (map[string]InventoryItem, error)
	Release(ctx context.Context, cmd InventoryAdjustmentCommand) (map[string]InventoryItem, error)
	Commit(ctx context.Context, cmd InventoryAdjustmentCommand) (map[string]InventoryItem, error)
	GetStock(ctx context.Context, productCode string) (InventoryItem, error)
	SetStock(ctx context.Context, cmd SetStockCommand) (InventoryItem, error)
}

// OrderEventPublisher accepts order lifecycle notifications for downstream processing.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEventMessage) error
}

// InventoryEventPublisher accepts stock change notifications for downstream processing.
type InventoryEventPublisher interface {
	PublishInventoryEvent(ctx context.Context, event InventoryEventMessage) error
}

// Command and DTO definitions ------------------------------------------------

type CreateOrderCommand struct {
	CustomerName    string
	CustomerEmail   string
	ShippingAddress string
	Items           []CreateOrderItemCommand
}

type CreateOrderItemCommand struct {
	ProductCode string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type UpdateOrderStatusCommand struct {
	OrderNumber string
	Status      OrderStatus
}

// OrderListFilter narrows listings to a single status when set.
type OrderListFilter struct {
	Status *OrderStatus
}

type InventoryAdjustmentCommand struct {
	Lines []InventoryLineCommand
}

type InventoryLineCommand struct {
	ProductCode string
	Quantity    int
}

type SetStockCommand struct {
	ProductCode string
	ProductName string
	OnHand      int
}

// OrderEventMessage is the payload published on order lifecycle changes.
type OrderEventMessage struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	TotalAmount    string    `json:"totalAmount,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// InventoryEventMessage is the payload published on stock counter changes.
type InventoryEventMessage struct {
	Type        string    `json:"type"`
	ProductCode string    `json:"productCode"`
	OnHand      int       `json:"onHand"`
	Reserved    int       `json:"reserved"`
	Available   int       `json:"available"`
	OccurredAt  time.Time `json:"occurredAt"`
}
