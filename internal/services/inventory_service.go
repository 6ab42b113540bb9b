package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/orderforge/api/internal/domain"
	"github.com/orderforge/api/internal/repositories"
)

const (
	eventInventoryReserved  = "inventory.reserved"
	eventInventoryReleased  = "inventory.released"
	eventInventoryCommitted = "inventory.committed"
	eventInventoryAdjusted  = "inventory.adjusted"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryInsufficientStock indicates the requested quantity exceeds availability.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryNotFound indicates the product has no stock record.
	ErrInventoryNotFound = errors.New("inventory: stock not found")
	// ErrInventoryInvalidState indicates the stock counters forbid the operation.
	ErrInventoryInvalidState = errors.New("inventory: invalid state")
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Events    InventoryEventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	repo   repositories.InventoryRepository
	events InventoryEventPublisher
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		repo:   deps.Inventory,
		events: deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) Reserve(ctx context.Context, cmd InventoryAdjustmentCommand) (map[string]InventoryItem, error) {
	return s.adjust(ctx, cmd, eventInventoryReserved, s.repo.Reserve)
}

func (s *inventoryService) Release(ctx context.Context, cmd InventoryAdjustmentCommand) (map[string]InventoryItem, error) {
	return s.adjust(ctx, cmd, eventInventoryReleased, s.repo.Release)
}

func (s *inventoryService) Commit(ctx context.Context, cmd InventoryAdjustmentCommand) (map[string]InventoryItem, error) {
	return s.adjust(ctx, cmd, eventInventoryCommitted, s.repo.Commit)
}

func (s *inventoryService) adjust(ctx context.Context, cmd InventoryAdjustmentCommand, eventType string, op func(context.Context, repositories.InventoryMutationRequest) (repositories.InventoryMutationResult, error)) (map[string]InventoryItem, error) {
	lines, err := validateAdjustmentLines(cmd.Lines)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result, err := op(ctx, repositories.InventoryMutationRequest{Lines: lines, Now: now})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}

	s.emitStockEvents(ctx, eventType, result.Stocks, now)
	return result.Stocks, nil
}

func (s *inventoryService) GetStock(ctx context.Context, productCode string) (InventoryItem, error) {
	productCode = strings.TrimSpace(productCode)
	if productCode == "" {
		return InventoryItem{}, fmt.Errorf("%w: product code is required", ErrInventoryInvalidInput)
	}

	stock, err := s.repo.FindByProductCode(ctx, productCode)
	if err != nil {
		return InventoryItem{}, s.mapRepositoryError(err)
	}
	return stock, nil
}

// SetStock creates or corrects a stock record. Units already reserved by open
// orders are preserved, so the new on-hand count may not undercut them.
func (s *inventoryService) SetStock(ctx context.Context, cmd SetStockCommand) (InventoryItem, error) {
	productCode := strings.TrimSpace(cmd.ProductCode)
	if productCode == "" {
		return InventoryItem{}, fmt.Errorf("%w: product code is required", ErrInventoryInvalidInput)
	}
	if cmd.OnHand < 0 {
		return InventoryItem{}, fmt.Errorf("%w: on-hand count must be >= 0", ErrInventoryInvalidInput)
	}

	item := domain.InventoryItem{
		ProductCode: productCode,
		ProductName: strings.TrimSpace(cmd.ProductName),
		OnHand:      cmd.OnHand,
	}
	if current, err := s.repo.FindByProductCode(ctx, productCode); err == nil {
		item.Reserved = current.Reserved
		item.Version = current.Version
		if item.ProductName == "" {
			item.ProductName = current.ProductName
		}
	} else if mapped := s.mapRepositoryError(err); !errors.Is(mapped, ErrInventoryNotFound) {
		return InventoryItem{}, mapped
	}
	if item.OnHand < item.Reserved {
		return InventoryItem{}, fmt.Errorf("%w: on-hand %d below reserved %d for %s", ErrInventoryInvalidState, item.OnHand, item.Reserved, productCode)
	}

	now := s.now()
	item.UpdatedAt = now
	saved, err := s.repo.Upsert(ctx, item)
	if err != nil {
		return InventoryItem{}, s.mapRepositoryError(err)
	}

	s.emitStockEvents(ctx, eventInventoryAdjusted, map[string]domain.InventoryItem{saved.ProductCode: saved}, now)
	return saved, nil
}

func (s *inventoryService) now() time.Time {
	return s.clock()
}

func (s *inventoryService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, invErr.Message)
		case repositories.InventoryErrorStockNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryNotFound, invErr.Message)
		case repositories.InventoryErrorInvalidState:
			return fmt.Errorf("%w: %s", ErrInventoryInvalidState, invErr.Message)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrInventoryNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("inventory: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *inventoryService) emitStockEvents(ctx context.Context, eventType string, stocks map[string]domain.InventoryItem, occurredAt time.Time) {
	if s.events == nil || len(stocks) == 0 {
		return
	}

	codes := make([]string, 0, len(stocks))
	for code := range stocks {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		stock := stocks[code]
		event := InventoryEventMessage{
			Type:        eventType,
			ProductCode: code,
			OnHand:      stock.OnHand,
			Reserved:    stock.Reserved,
			Available:   stock.Available(),
			OccurredAt:  occurredAt,
		}
		if err := s.events.PublishInventoryEvent(ctx, event); err != nil {
			s.logger(ctx, "inventory.event.publish.failed", map[string]any{
				"type":    eventType,
				"product": code,
				"error":   err.Error(),
			})
		}
	}
}

func validateAdjustmentLines(lines []InventoryLineCommand) ([]repositories.InventoryLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}
	out := make([]repositories.InventoryLine, 0, len(lines))
	for _, line := range lines {
		code := strings.TrimSpace(line.ProductCode)
		if code == "" {
			return nil, fmt.Errorf("%w: line product code is required", ErrInventoryInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInventoryInvalidInput, code)
		}
		out = append(out, repositories.InventoryLine{ProductCode: code, Quantity: line.Quantity})
	}
	return out, nil
}
