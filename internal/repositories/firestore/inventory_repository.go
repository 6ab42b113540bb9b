package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/orderforge/api/internal/domain"
	pfirestore "github.com/orderforge/api/internal/platform/firestore"
	"github.com/orderforge/api/internal/repositories"
)

const inventoryCollection = "inventory"

// InventoryRepository stores one stock document per product code. All order
// level mutations run inside a transaction that reads every affected stock
// before buffering any write, honouring Firestore's read-then-write rule.
type InventoryRepository struct {
	provider *pfirestore.Provider
	stocks   *pfirestore.BaseRepository[stockDocument]
}

func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	stocks := pfirestore.NewBaseRepository[stockDocument](provider, inventoryCollection)
	return &InventoryRepository{provider: provider, stocks: stocks}, nil
}

func (r *InventoryRepository) Reserve(ctx context.Context, req repositories.InventoryMutationRequest) (repositories.InventoryMutationResult, error) {
	return r.mutate(ctx, "inventory.reserve", req, func(stock *domain.InventoryItem, qty int) error {
		return stock.Reserve(qty)
	})
}

func (r *InventoryRepository) Release(ctx context.Context, req repositories.InventoryMutationRequest) (repositories.InventoryMutationResult, error) {
	return r.mutate(ctx, "inventory.release", req, func(stock *domain.InventoryItem, qty int) error {
		return stock.Release(qty)
	})
}

func (r *InventoryRepository) Commit(ctx context.Context, req repositories.InventoryMutationRequest) (repositories.InventoryMutationResult, error) {
	return r.mutate(ctx, "inventory.commit", req, func(stock *domain.InventoryItem, qty int) error {
		return stock.Commit(qty)
	})
}

func (r *InventoryRepository) mutate(ctx context.Context, op string, req repositories.InventoryMutationRequest, apply func(stock *domain.InventoryItem, qty int) error) (repositories.InventoryMutationResult, error) {
	if r == nil || r.provider == nil {
		return repositories.InventoryMutationResult{}, errors.New("inventory repository not initialised")
	}
	lines, err := repositories.NormalizeInventoryLines(op, req.Lines)
	if err != nil {
		return repositories.InventoryMutationResult{}, err
	}

	now := req.Now.UTC()
	var result repositories.InventoryMutationResult
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Read phase: fetch every affected stock before buffering writes.
		refs := make([]*firestore.DocumentRef, len(lines))
		docs := make([]stockDocument, len(lines))
		for i, line := range lines {
			ref, err := r.stocks.DocumentRef(ctx, line.ProductCode)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewInventoryError(repositories.InventoryErrorStockNotFound,
						fmt.Sprintf("no stock record for product %s", line.ProductCode), err)
				}
				return err
			}
			if err := snap.DataTo(&docs[i]); err != nil {
				return fmt.Errorf("decode inventory stock %s: %w", line.ProductCode, err)
			}
			refs[i] = ref
		}

		// Apply phase: run the counter transition on every line.
		stocks := make(map[string]domain.InventoryItem, len(lines))
		for i, line := range lines {
			stock := docs[i].toDomain(line.ProductCode)
			if err := apply(&stock, line.Quantity); err != nil {
				return wrapStockError(err)
			}
			stock.Version++
			if !now.IsZero() {
				stock.UpdatedAt = now
			}
			docs[i] = newStockDocument(stock)
			stocks[line.ProductCode] = stock
		}

		// Write phase.
		for i, ref := range refs {
			if err := tx.Set(ref, docs[i]); err != nil {
				return err
			}
		}

		result = repositories.InventoryMutationResult{Stocks: stocks}
		return nil
	})
	if err != nil {
		return repositories.InventoryMutationResult{}, wrapInventoryError(op, err)
	}
	return result, nil
}

func (r *InventoryRepository) FindByProductCode(ctx context.Context, productCode string) (domain.InventoryItem, error) {
	if r == nil || r.stocks == nil {
		return domain.InventoryItem{}, errors.New("inventory repository not initialised")
	}
	productCode = strings.TrimSpace(productCode)
	if productCode == "" {
		return domain.InventoryItem{}, errors.New("inventory find: product code is required")
	}

	doc, err := r.stocks.Get(ctx, productCode)
	if err != nil {
		return domain.InventoryItem{}, wrapInventoryError("inventory.find", err)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *InventoryRepository) Upsert(ctx context.Context, item domain.InventoryItem) (domain.InventoryItem, error) {
	if r == nil || r.provider == nil {
		return domain.InventoryItem{}, errors.New("inventory repository not initialised")
	}
	code := strings.TrimSpace(item.ProductCode)
	if code == "" {
		return domain.InventoryItem{}, errors.New("inventory upsert: product code is required")
	}
	item.ProductCode = code

	var saved domain.InventoryItem
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.stocks.DocumentRef(ctx, code)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var current stockDocument
			if err := snap.DataTo(&current); err != nil {
				return fmt.Errorf("decode inventory stock %s: %w", code, err)
			}
			item.Version = current.Version + 1
		case status.Code(err) == codes.NotFound:
			// first write for this product
		default:
			return err
		}
		item.UpdatedAt = item.UpdatedAt.UTC()
		saved = item
		return tx.Set(ref, newStockDocument(item))
	})
	if err != nil {
		return domain.InventoryItem{}, wrapInventoryError("inventory.upsert", err)
	}
	return saved, nil
}

// Helper structures ---------------------------------------------------------

type stockDocument struct {
	ProductCode string    `firestore:"productCode"`
	ProductName string    `firestore:"productName"`
	OnHand      int       `firestore:"onHand"`
	Reserved    int       `firestore:"reserved"`
	Available   int       `firestore:"available"`
	Version     int64     `firestore:"version"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func newStockDocument(item domain.InventoryItem) stockDocument {
	return stockDocument{
		ProductCode: item.ProductCode,
		ProductName: item.ProductName,
		OnHand:      item.OnHand,
		Reserved:    item.Reserved,
		Available:   item.Available(),
		Version:     item.Version,
		UpdatedAt:   item.UpdatedAt.UTC(),
	}
}

func (s stockDocument) toDomain(id string) domain.InventoryItem {
	return domain.InventoryItem{
		ProductCode: id,
		ProductName: strings.TrimSpace(s.ProductName),
		OnHand:      s.OnHand,
		Reserved:    s.Reserved,
		Version:     s.Version,
		UpdatedAt:   s.UpdatedAt,
	}
}

func wrapStockError(err error) error {
	var insufficient *domain.InsufficientStockError
	code := repositories.InventoryErrorInvalidState
	if errors.As(err, &insufficient) {
		code = repositories.InventoryErrorInsufficientStock
	}
	return repositories.NewInventoryError(code, err.Error(), err)
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}
