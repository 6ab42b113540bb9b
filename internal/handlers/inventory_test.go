package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/orderforge/api/internal/domain"
	"github.com/orderforge/api/internal/services"
)

type stubInventoryService struct {
	getFn func(context.Context, string) (services.InventoryItem, error)
	setFn func(context.Context, services.SetStockCommand) (services.InventoryItem, error)
}

func (s *stubInventoryService) Reserve(context.Context, services.InventoryAdjustmentCommand) (map[string]services.InventoryItem, error) {
	return nil, errors.New("not implemented")
}

func (s *stubInventoryService) Release(context.Context, services.InventoryAdjustmentCommand) (map[string]services.InventoryItem, error) {
	return nil, errors.New("not implemented")
}

func (s *stubInventoryService) Commit(context.Context, services.InventoryAdjustmentCommand) (map[string]services.InventoryItem, error) {
	return nil, errors.New("not implemented")
}

func (s *stubInventoryService) GetStock(ctx context.Context, productCode string) (services.InventoryItem, error) {
	if s.getFn != nil {
		return s.getFn(ctx, productCode)
	}
	return services.InventoryItem{}, errors.New("not implemented")
}

func (s *stubInventoryService) SetStock(ctx context.Context, cmd services.SetStockCommand) (services.InventoryItem, error) {
	if s.setFn != nil {
		return s.setFn(ctx, cmd)
	}
	return services.InventoryItem{}, errors.New("not implemented")
}

func newInventoryRouter(svc services.InventoryService) chi.Router {
	r := chi.NewRouter()
	NewInventoryHandlers(svc).Routes(r)
	return r
}

func TestGetStockEndpoint(t *testing.T) {
	svc := &stubInventoryService{
		getFn: func(_ context.Context, productCode string) (services.InventoryItem, error) {
			return domain.InventoryItem{
				ProductCode: productCode,
				ProductName: "Widget",
				OnHand:      10,
				Reserved:    3,
				UpdatedAt:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := newInventoryRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/SKU-1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload stockResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Stock.ProductCode != "SKU-1" || payload.Stock.Available != 7 {
		t.Fatalf("unexpected payload %+v", payload.Stock)
	}
}

func TestGetStockEndpointMapsNotFound(t *testing.T) {
	svc := &stubInventoryService{
		getFn: func(context.Context, string) (services.InventoryItem, error) {
			return services.InventoryItem{}, fmt.Errorf("%w: SKU-404", services.ErrInventoryNotFound)
		},
	}
	router := newInventoryRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/SKU-404", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSetStockEndpoint(t *testing.T) {
	var received services.SetStockCommand
	svc := &stubInventoryService{
		setFn: func(_ context.Context, cmd services.SetStockCommand) (services.InventoryItem, error) {
			received = cmd
			return domain.InventoryItem{
				ProductCode: cmd.ProductCode,
				ProductName: cmd.ProductName,
				OnHand:      cmd.OnHand,
				Version:     1,
			}, nil
		},
	}
	router := newInventoryRouter(svc)

	body := `{"product_name": "Widget", "on_hand": 25}`
	req := httptest.NewRequest(http.MethodPut, "/SKU-1", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if received.ProductCode != "SKU-1" || received.OnHand != 25 || received.ProductName != "Widget" {
		t.Fatalf("unexpected command %+v", received)
	}
}

func TestSetStockEndpointMapsInvalidState(t *testing.T) {
	svc := &stubInventoryService{
		setFn: func(context.Context, services.SetStockCommand) (services.InventoryItem, error) {
			return services.InventoryItem{}, fmt.Errorf("%w: on-hand below reserved", services.ErrInventoryInvalidState)
		},
	}
	router := newInventoryRouter(svc)

	req := httptest.NewRequest(http.MethodPut, "/SKU-1", bytes.NewBufferString(`{"on_hand": 1}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}
