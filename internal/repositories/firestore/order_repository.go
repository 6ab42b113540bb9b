package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/orderforge/api/internal/domain"
	pfirestore "github.com/orderforge/api/internal/platform/firestore"
	"github.com/orderforge/api/internal/repositories"
)

const (
	ordersCollection       = "orders"
	orderNumbersCollection = "orderNumbers"
)

// OrderRepository stores one document per order, line items embedded.
// Monetary amounts are persisted as decimal strings. A companion document
// keyed by the order number claims the number inside the insert transaction,
// so a duplicate surfaces as a conflict instead of a second order.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	orders := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)
	return &OrderRepository{provider: provider, orders: orders}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order insert: id is required")
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return errors.New("order insert: order number is required")
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}
		ref, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		numberRef := client.Collection(orderNumbersCollection).Doc(order.OrderNumber)
		// Creating the claim document fails with AlreadyExists when another
		// order holds the number, which classifies as a conflict.
		if err := tx.Create(numberRef, orderNumberClaim{OrderID: order.ID}); err != nil {
			return err
		}
		return tx.Create(ref, newOrderDocument(order))
	})
	return pfirestore.WrapError("orders.insert", err)
}

// Update persists the order after an optimistic version check. When the
// context carries an ambient transaction the check against the stored version
// already happened during the transaction's read phase, so only the write is
// buffered here.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order update: id is required")
	}

	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		ref, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return domain.Order{}, err
		}
		order.Version++
		if err := tx.Set(ref, newOrderDocument(order)); err != nil {
			return domain.Order{}, pfirestore.WrapError("orders.update", err)
		}
		return order, nil
	}

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var current orderDocument
		if err := snap.DataTo(&current); err != nil {
			return fmt.Errorf("decode order %s: %w", order.ID, err)
		}
		if current.Version != order.Version {
			return pfirestore.WrapError("orders.update",
				status.Errorf(codes.Aborted, "order %s version mismatch: have %d want %d", order.ID, current.Version, order.Version))
		}
		order.Version++
		updated = order
		return tx.Set(ref, newOrderDocument(order))
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}
	return updated, nil
}

func (r *OrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return domain.Order{}, errors.New("order find: order number is required")
	}

	snap, err := r.queryOne(ctx, orderNumber)
	if err != nil {
		return domain.Order{}, err
	}
	if snap == nil {
		return domain.Order{}, pfirestore.WrapError("orders.find",
			status.Errorf(codes.NotFound, "order %s not found", orderNumber))
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID)
}

// ExistsByOrderNumber reads the number claim document rather than querying
// the orders collection, so the check also works inside a transaction's read
// phase.
func (r *OrderRepository) ExistsByOrderNumber(ctx context.Context, orderNumber string) (bool, error) {
	if r == nil || r.provider == nil {
		return false, errors.New("order repository not initialised")
	}
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return false, errors.New("order exists: order number is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return false, err
	}
	ref := client.Collection(orderNumbersCollection).Doc(orderNumber)

	var snap *firestore.DocumentSnapshot
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		snap, err = tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, pfirestore.WrapError("orders.exists", err)
	}
	return snap.Exists(), nil
}

// queryOne resolves an order number to its document snapshot, joining the
// ambient transaction when one is present so the lookup counts as a
// transactional read.
func (r *OrderRepository) queryOne(ctx context.Context, orderNumber string) (*firestore.DocumentSnapshot, error) {
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	query := client.Collection(ordersCollection).Where("orderNumber", "==", orderNumber).Limit(1)

	var iter *firestore.DocumentIterator
	if tx, ok := pfirestore.TransactionFrom(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, nil
	}
	if err != nil {
		return nil, pfirestore.WrapError("orders.find", err)
	}
	return snap, nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Status != nil {
			query = query.Where("status", "==", string(*filter.Status))
		}
		return query.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, pfirestore.WrapError("orders.list", err)
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		order, err := doc.Data.toDomain(doc.ID)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Helper structures ---------------------------------------------------------

// orderNumberClaim reserves an order number for exactly one order document.
type orderNumberClaim struct {
	OrderID string `firestore:"orderId"`
}

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	CustomerName    string              `firestore:"customerName"`
	CustomerEmail   string              `firestore:"customerEmail"`
	ShippingAddress string              `firestore:"shippingAddress"`
	Status          string              `firestore:"status"`
	TotalAmount     string              `firestore:"totalAmount"`
	Items           []orderItemDocument `firestore:"items"`
	Version         int64               `firestore:"version"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductCode string `firestore:"productCode"`
	ProductName string `firestore:"productName"`
	Quantity    int    `firestore:"qty"`
	UnitPrice   string `firestore:"unitPrice"`
	LineTotal   string `firestore:"lineTotal"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			ProductCode: item.ProductCode,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.String(),
			LineTotal:   item.LineTotal.String(),
		}
	}
	return orderDocument{
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		ShippingAddress: order.ShippingAddress,
		Status:          string(order.Status),
		TotalAmount:     order.TotalAmount.String(),
		Items:           items,
		Version:         order.Version,
		CreatedAt:       order.CreatedAt.UTC(),
		UpdatedAt:       order.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toDomain(id string) (domain.Order, error) {
	total, err := decimal.NewFromString(d.TotalAmount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s total: %w", id, err)
	}
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return domain.Order{}, fmt.Errorf("decode order %s item %s price: %w", id, item.ProductCode, err)
		}
		lineTotal, err := decimal.NewFromString(item.LineTotal)
		if err != nil {
			return domain.Order{}, fmt.Errorf("decode order %s item %s total: %w", id, item.ProductCode, err)
		}
		items[i] = domain.OrderItem{
			ProductCode: item.ProductCode,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   price,
			LineTotal:   lineTotal,
		}
	}
	return domain.Order{
		ID:              id,
		OrderNumber:     d.OrderNumber,
		CustomerName:    d.CustomerName,
		CustomerEmail:   d.CustomerEmail,
		ShippingAddress: d.ShippingAddress,
		Status:          domain.OrderStatus(d.Status),
		TotalAmount:     total,
		Items:           items,
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}
