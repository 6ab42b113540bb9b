package repositories

import (
	"context"
	"time"

	domain "github.com/orderforge/api/internal/domain"
)

// Store exposes typed repository accessors and lifecycle hooks for dependency injection.
type Store interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Inventory() InventoryRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repository calls made with the context handed to fn join the surrounding transaction;
// when fn returns an error nothing is persisted.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates, embedded line items included.
type OrderRepository interface {
	// Insert stores a new order. A duplicate ID or order number must surface
	// as a conflict error.
	Insert(ctx context.Context, order domain.Order) error
	// Update persists the order using Version as an optimistic check. On
	// success the stored version is incremented and reflected in the returned
	// order; a stale version must surface as a conflict error.
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// InventoryRepository manages stock levels and the reservation lifecycle with
// transactional guarantees. Each mutation is a read-modify-write across every
// requested line inside one transaction, visiting products in ascending
// product-code order; a failing line aborts the whole request with no partial
// effect.
type InventoryRepository interface {
	Reserve(ctx context.Context, req InventoryMutationRequest) (InventoryMutationResult, error)
	Release(ctx context.Context, req InventoryMutationRequest) (InventoryMutationResult, error)
	Commit(ctx context.Context, req InventoryMutationRequest) (InventoryMutationResult, error)
	FindByProductCode(ctx context.Context, productCode string) (domain.InventoryItem, error)
	// Upsert creates or replaces a stock record, used for seeding and
	// administrative corrections.
	Upsert(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error)
}

// InventoryLine names one product and the quantity affected by a mutation.
type InventoryLine struct {
	ProductCode string
	Quantity    int
}

// InventoryMutationRequest carries the full line set of one order-level stock operation.
type InventoryMutationRequest struct {
	Lines []InventoryLine
	Now   time.Time
}

// InventoryMutationResult reports the updated stock records keyed by product code.
type InventoryMutationResult struct {
	Stocks map[string]domain.InventoryItem
}

// OrderListFilter narrows order listings; a nil Status means all orders.
type OrderListFilter struct {
	Status *domain.OrderStatus
}
