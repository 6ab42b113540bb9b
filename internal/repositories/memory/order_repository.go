package memory

import (
	"context"
	"sort"
	"strings"

	domain "github.com/orderforge/api/internal/domain"
	"github.com/orderforge/api/internal/repositories"
)

type orderRepository struct {
	store *Store
}

func (r *orderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.store.withLock(ctx, func() error {
		if _, ok := r.store.orders[order.ID]; ok {
			return conflictError("memory.orders.insert", "order %s already exists", order.ID)
		}
		if _, ok := r.store.byNumber[order.OrderNumber]; ok {
			return conflictError("memory.orders.insert", "order number %s already exists", order.OrderNumber)
		}
		r.store.orders[order.ID] = cloneOrder(order)
		r.store.byNumber[order.OrderNumber] = order.ID
		return nil
	})
}

func (r *orderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	var updated domain.Order
	err := r.store.withLock(ctx, func() error {
		current, ok := r.store.orders[order.ID]
		if !ok {
			return notFoundError("memory.orders.update", "order %s not found", order.ID)
		}
		if current.Version != order.Version {
			return conflictError("memory.orders.update", "order %s version mismatch: have %d want %d", order.ID, current.Version, order.Version)
		}
		order.Version++
		r.store.orders[order.ID] = cloneOrder(order)
		updated = cloneOrder(order)
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

func (r *orderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var found domain.Order
	err := r.store.withLock(ctx, func() error {
		id, ok := r.store.byNumber[orderNumber]
		if !ok {
			return notFoundError("memory.orders.find", "order %s not found", orderNumber)
		}
		found = cloneOrder(r.store.orders[id])
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return found, nil
}

func (r *orderRepository) ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error) {
	var exists bool
	err := r.store.withLock(ctx, func() error {
		_, exists = r.store.byNumber[orderNumber]
		return nil
	})
	return exists, err
}

func (r *orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.store.withLock(ctx, func() error {
		for _, order := range r.store.orders {
			if filter.Status != nil && order.Status != *filter.Status {
				continue
			}
			orders = append(orders, cloneOrder(order))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return strings.Compare(orders[i].OrderNumber, orders[j].OrderNumber) < 0
	})
	return orders, nil
}
