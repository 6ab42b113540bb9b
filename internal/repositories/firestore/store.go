// Package firestore implements the repositories contracts on Cloud Firestore.
package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/orderforge/api/internal/platform/firestore"
	"github.com/orderforge/api/internal/repositories"
)

// Store bundles the Firestore-backed repositories behind one provider.
type Store struct {
	provider  *pfirestore.Provider
	orders    *OrderRepository
	inventory *InventoryRepository
}

// NewStore constructs the Firestore store and its repositories.
func NewStore(provider *pfirestore.Provider) (*Store, error) {
	if provider == nil {
		return nil, errors.New("firestore store requires a provider")
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	inventory, err := NewInventoryRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Store{provider: provider, orders: orders, inventory: inventory}, nil
}

// Orders implements repositories.Store.
func (s *Store) Orders() repositories.OrderRepository { return s.orders }

// Inventory implements repositories.Store.
func (s *Store) Inventory() repositories.InventoryRepository { return s.inventory }

// RunInTx executes fn inside one Firestore transaction. Repository calls made
// with the context passed to fn join the transaction. Firestore requires all
// transactional reads to happen before the first buffered write, so callers
// must perform lookups before mutations inside fn.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

// Close releases the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.provider.Close(ctx)
}
