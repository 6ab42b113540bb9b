// Package memory provides a mutex-guarded in-memory storage backend useful
// for testing and local development.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	domain "github.com/orderforge/api/internal/domain"
	"github.com/orderforge/api/internal/repositories"
)

// Store keeps every record in process memory behind a single mutex. RunInTx
// holds the mutex for the duration of the callback and rolls the maps back to
// a snapshot when the callback fails, so transactional callers observe the
// same all-or-nothing behaviour as the Firestore backend.
type Store struct {
	mu sync.Mutex

	orders   map[string]domain.Order // keyed by order ID
	byNumber map[string]string       // order number -> order ID
	stocks   map[string]domain.InventoryItem
}

// NewStore constructs an empty memory-backed store.
func NewStore() *Store {
	return &Store{
		orders:   make(map[string]domain.Order),
		byNumber: make(map[string]string),
		stocks:   make(map[string]domain.InventoryItem),
	}
}

// Orders returns the order repository view of the store.
func (s *Store) Orders() repositories.OrderRepository {
	return &orderRepository{store: s}
}

// Inventory returns the inventory repository view of the store.
func (s *Store) Inventory() repositories.InventoryRepository {
	return &inventoryRepository{store: s}
}

// Close implements repositories.Store. There is nothing to release.
func (s *Store) Close(context.Context) error {
	return nil
}

type txKey struct{}

type txState struct {
	store *Store
}

// RunInTx executes fn while holding the store lock. Repository calls made
// with the context passed to fn join the transaction instead of taking the
// lock again. When fn returns an error every change made inside it is rolled
// back. A nested call joins the ambient transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok && tx.store == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapOrders := make(map[string]domain.Order, len(s.orders))
	for id, order := range s.orders {
		snapOrders[id] = cloneOrder(order)
	}
	snapNumbers := make(map[string]string, len(s.byNumber))
	for num, id := range s.byNumber {
		snapNumbers[num] = id
	}
	snapStocks := make(map[string]domain.InventoryItem, len(s.stocks))
	for code, stock := range s.stocks {
		snapStocks[code] = stock
	}

	if err := fn(context.WithValue(ctx, txKey{}, &txState{store: s})); err != nil {
		s.orders = snapOrders
		s.byNumber = snapNumbers
		s.stocks = snapStocks
		return err
	}
	return nil
}

// withLock runs fn under the store lock unless the context already carries a
// transaction owned by this store, in which case the lock is already held.
func (s *Store) withLock(ctx context.Context, fn func() error) error {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok && tx.store == s {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func cloneOrder(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	return order
}

// Error implements repositories.RepositoryError for the memory backend.
type Error struct {
	op          string
	message     string
	notFound    bool
	conflict    bool
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %s", e.op, e.message)
	}
	return e.message
}

// IsNotFound reports whether the error represents a missing record.
func (e *Error) IsNotFound() bool {
	return e != nil && e.notFound
}

// IsConflict reports whether the error represents a conflicting update.
func (e *Error) IsConflict() bool {
	return e != nil && e.conflict
}

// IsUnavailable reports whether the error represents a backend outage.
func (e *Error) IsUnavailable() bool {
	return e != nil && e.unavailable
}

func notFoundError(op, format string, args ...any) *Error {
	return &Error{op: op, message: fmt.Sprintf(format, args...), notFound: true}
}

func conflictError(op, format string, args ...any) *Error {
	return &Error{op: op, message: fmt.Sprintf(format, args...), conflict: true}
}
