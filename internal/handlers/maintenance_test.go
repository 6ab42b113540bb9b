package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestPromotePendingEndpointReportsCount(t *testing.T) {
	svc := &stubOrderService{
		promoteFn: func(context.Context) (int, error) { return 3, nil },
	}
	r := chi.NewRouter()
	NewMaintenanceHandlers(svc).Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/orders/promote-pending", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var payload promotePendingResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.PromotedCount != 3 {
		t.Fatalf("expected 3 promotions, got %d", payload.PromotedCount)
	}
}

func TestPromotePendingEndpointMapsErrors(t *testing.T) {
	svc := &stubOrderService{
		promoteFn: func(context.Context) (int, error) {
			return 0, errors.New("listing unavailable")
		},
	}
	r := chi.NewRouter()
	NewMaintenanceHandlers(svc).Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/orders/promote-pending", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
