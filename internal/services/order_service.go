package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/orderforge/api/internal/domain"
	"github.com/orderforge/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"

	orderIDPrefix = "ord_"

	maxOrderNumberAttempts = 5
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates optimistic concurrency conflicts or duplicates.
	ErrOrderConflict = errors.New("order: conflict")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders          repositories.OrderRepository
	Inventory       InventoryService
	UnitOfWork      repositories.UnitOfWork
	Clock           func() time.Time
	IDGenerator     func() string
	NumberGenerator func(now time.Time) (string, error)
	Events          OrderEventPublisher
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	newNumber  func(now time.Time) (string, error)
	events     OrderEventPublisher
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	numberGen := deps.NumberGenerator
	if numberGen == nil {
		numberGen = generateOrderNumber
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		inventory:  deps.Inventory,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:     idGen,
		newNumber: numberGen,
		events:    deps.Events,
		logger:    logger,
	}, nil
}

// CreateOrder validates the command, reserves stock for every line, and
// persists the new order in PENDING status. Reservation and insert share one
// transaction so a failed insert never leaves stock reserved.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	if err := validateCreateOrder(cmd); err != nil {
		return Order{}, err
	}

	now := s.now()
	orderNumber, err := s.uniqueOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	order := domain.Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     orderNumber,
		CustomerName:    strings.TrimSpace(cmd.CustomerName),
		CustomerEmail:   strings.TrimSpace(cmd.CustomerEmail),
		ShippingAddress: strings.TrimSpace(cmd.ShippingAddress),
		Status:          domain.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, item := range cmd.Items {
		order.AddItem(domain.NewOrderItem(
			strings.TrimSpace(item.ProductCode),
			strings.TrimSpace(item.ProductName),
			item.Quantity,
			item.UnitPrice,
		))
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.inventory.Reserve(txCtx, InventoryAdjustmentCommand{Lines: orderLines(order)}); err != nil {
			return err
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:        orderEventCreated,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount.String(),
		OccurredAt:  now,
	})

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderNumber string) (Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) ([]Order, error) {
	orders, err := s.orders.List(ctx, repositories.OrderListFilter{Status: filter.Status})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

// UpdateOrderStatus moves the order along the lifecycle. Reserved stock is
// committed exactly when the observed transition is PENDING to PROCESSING.
// Cancellation has its own endpoint and is rejected here.
func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderNumber := strings.TrimSpace(cmd.OrderNumber)
	if orderNumber == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}
	target, ok := domain.ParseOrderStatus(string(cmd.Status))
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	if target == domain.OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: use the cancellation endpoint to cancel an order", ErrOrderInvalidInput)
	}

	now := s.now()
	var (
		updated  Order
		previous domain.OrderStatus
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByOrderNumber(txCtx, orderNumber)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		previous = order.Status

		if err := order.UpdateStatus(target); err != nil {
			return fmt.Errorf("%w: %v", ErrOrderInvalidState, err)
		}

		if previous == domain.OrderStatusPending && order.Status == domain.OrderStatusProcessing {
			if _, err := s.inventory.Commit(txCtx, InventoryAdjustmentCommand{Lines: orderLines(order)}); err != nil {
				return err
			}
		}

		order.UpdatedAt = now
		updated, err = s.orders.Update(txCtx, order)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if previous != updated.Status {
		s.publishEvent(ctx, OrderEventMessage{
			Type:           orderEventStatusChanged,
			OrderID:        updated.ID,
			OrderNumber:    updated.OrderNumber,
			Status:         string(updated.Status),
			PreviousStatus: string(previous),
			OccurredAt:     now,
		})
	}

	return updated, nil
}

// CancelOrder cancels a PENDING order and returns its reserved stock.
func (s *orderService) CancelOrder(ctx context.Context, orderNumber string) (Order, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return Order{}, fmt.Errorf("%w: order number is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var (
		updated  Order
		previous domain.OrderStatus
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByOrderNumber(txCtx, orderNumber)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		previous = order.Status

		if err := order.Cancel(); err != nil {
			return fmt.Errorf("%w: %v", ErrOrderInvalidState, err)
		}

		if _, err := s.inventory.Release(txCtx, InventoryAdjustmentCommand{Lines: orderLines(order)}); err != nil {
			return err
		}

		order.UpdatedAt = now
		updated, err = s.orders.Update(txCtx, order)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:           orderEventCancelled,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		Status:         string(updated.Status),
		PreviousStatus: string(previous),
		OccurredAt:     now,
	})

	return updated, nil
}

// PromotePendingOrders sweeps every PENDING order into PROCESSING, committing
// its reserved stock. Each order is promoted in its own transaction so one
// failing order does not hold back the rest; failures are logged and skipped.
func (s *orderService) PromotePendingOrders(ctx context.Context) (int, error) {
	pending := domain.OrderStatusPending
	orders, err := s.orders.List(ctx, repositories.OrderListFilter{Status: &pending})
	if err != nil {
		return 0, s.mapRepositoryError(err)
	}

	promoted := 0
	for _, candidate := range orders {
		if err := s.promoteOrder(ctx, candidate.OrderNumber); err != nil {
			s.logger(ctx, "order.promotion.failed", map[string]any{
				"orderNumber": candidate.OrderNumber,
				"error":       err.Error(),
			})
			continue
		}
		promoted++
	}
	return promoted, nil
}

func (s *orderService) promoteOrder(ctx context.Context, orderNumber string) error {
	now := s.now()
	var updated Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByOrderNumber(txCtx, orderNumber)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if !order.MarkProcessing() {
			// concurrently promoted or cancelled since listing
			return fmt.Errorf("%w: order %s is %s", ErrOrderInvalidState, orderNumber, order.Status)
		}

		if _, err := s.inventory.Commit(txCtx, InventoryAdjustmentCommand{Lines: orderLines(order)}); err != nil {
			return err
		}

		order.UpdatedAt = now
		updated, err = s.orders.Update(txCtx, order)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, OrderEventMessage{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		Status:         string(updated.Status),
		PreviousStatus: string(domain.OrderStatusPending),
		OccurredAt:     now,
	})
	return nil
}

func (s *orderService) uniqueOrderNumber(ctx context.Context, now time.Time) (string, error) {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		candidate, err := s.newNumber(now)
		if err != nil {
			return "", err
		}
		exists, err := s.orders.ExistsByOrderNumber(ctx, candidate)
		if err != nil {
			return "", s.mapRepositoryError(err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a unique order number", ErrOrderConflict)
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEventMessage) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func orderLines(order Order) []InventoryLineCommand {
	lines := make([]InventoryLineCommand, len(order.Items))
	for i, item := range order.Items {
		lines[i] = InventoryLineCommand{ProductCode: item.ProductCode, Quantity: item.Quantity}
	}
	return lines
}

func validateCreateOrder(cmd CreateOrderCommand) error {
	if strings.TrimSpace(cmd.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrOrderInvalidInput)
	}
	email := strings.TrimSpace(cmd.CustomerEmail)
	if email == "" {
		return fmt.Errorf("%w: customer email is required", ErrOrderInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: customer email %q is invalid", ErrOrderInvalidInput, email)
	}
	if strings.TrimSpace(cmd.ShippingAddress) == "" {
		return fmt.Errorf("%w: shipping address is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	for _, item := range cmd.Items {
		if strings.TrimSpace(item.ProductCode) == "" {
			return fmt.Errorf("%w: item product code is required", ErrOrderInvalidInput)
		}
		if strings.TrimSpace(item.ProductName) == "" {
			return fmt.Errorf("%w: product name for %s is required", ErrOrderInvalidInput, item.ProductCode)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for %s must be positive", ErrOrderInvalidInput, item.ProductCode)
		}
		if !item.UnitPrice.IsPositive() {
			return fmt.Errorf("%w: unit price for %s must be positive", ErrOrderInvalidInput, item.ProductCode)
		}
	}
	return nil
}
