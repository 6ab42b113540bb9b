package memory

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/orderforge/api/internal/domain"
	"github.com/orderforge/api/internal/repositories"
)

type inventoryRepository struct {
	store *Store
}

func (r *inventoryRepository) Reserve(ctx context.Context, req repositories.InventoryMutationRequest) (repositories.InventoryMutationResult, error) {
	return r.mutate(ctx, "memory.inventory.reserve", req, func(stock *domain.InventoryItem, qty int) error {
		return stock.Reserve(qty)
	})
}

func (r *inventoryRepository) Release(ctx context.Context, req repositories.InventoryMutationRequest) (repositories.InventoryMutationResult, error) {
	return r.mutate(ctx, "memory.inventory.release", req, func(stock *domain.InventoryItem, qty int) error {
		return stock.Release(qty)
	})
}

func (r *inventoryRepository) Commit(ctx context.Context, req repositories.InventoryMutationRequest) (repositories.InventoryMutationResult, error) {
	return r.mutate(ctx, "memory.inventory.commit", req, func(stock *domain.InventoryItem, qty int) error {
		return stock.Commit(qty)
	})
}

// mutate applies op to every requested line in ascending product-code order.
// The updated stocks are staged on copies and written back only when every
// line succeeds, so a failing line leaves all counters untouched.
func (r *inventoryRepository) mutate(ctx context.Context, op string, req repositories.InventoryMutationRequest, apply func(stock *domain.InventoryItem, qty int) error) (repositories.InventoryMutationResult, error) {
	lines, err := repositories.NormalizeInventoryLines(op, req.Lines)
	if err != nil {
		return repositories.InventoryMutationResult{}, err
	}

	result := repositories.InventoryMutationResult{Stocks: make(map[string]domain.InventoryItem, len(lines))}
	err = r.store.withLock(ctx, func() error {
		staged := make(map[string]domain.InventoryItem, len(lines))
		for _, line := range lines {
			stock, ok := r.store.stocks[line.ProductCode]
			if !ok {
				ierr := repositories.NewInventoryError(repositories.InventoryErrorStockNotFound,
					fmt.Sprintf("no stock record for product %s", line.ProductCode), nil)
				ierr.Op = op
				return ierr
			}
			if err := apply(&stock, line.Quantity); err != nil {
				return wrapStockError(op, err)
			}
			if !req.Now.IsZero() {
				stock.UpdatedAt = req.Now.UTC()
			}
			staged[line.ProductCode] = stock
		}
		for code, stock := range staged {
			stock.Version++
			r.store.stocks[code] = stock
			result.Stocks[code] = stock
		}
		return nil
	})
	if err != nil {
		return repositories.InventoryMutationResult{}, err
	}
	return result, nil
}

func (r *inventoryRepository) FindByProductCode(ctx context.Context, productCode string) (domain.InventoryItem, error) {
	var found domain.InventoryItem
	err := r.store.withLock(ctx, func() error {
		stock, ok := r.store.stocks[productCode]
		if !ok {
			return notFoundError("memory.inventory.find", "no stock record for product %s", productCode)
		}
		found = stock
		return nil
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return found, nil
}

func (r *inventoryRepository) Upsert(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	var saved domain.InventoryItem
	err := r.store.withLock(ctx, func() error {
		if current, ok := r.store.stocks[item.ProductCode]; ok {
			item.Version = current.Version + 1
		}
		r.store.stocks[item.ProductCode] = item
		saved = item
		return nil
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	return saved, nil
}

func wrapStockError(op string, err error) error {
	var insufficient *domain.InsufficientStockError
	code := repositories.InventoryErrorInvalidState
	if errors.As(err, &insufficient) {
		code = repositories.InventoryErrorInsufficientStock
	}
	ierr := repositories.NewInventoryError(code, err.Error(), err)
	ierr.Op = op
	return ierr
}
