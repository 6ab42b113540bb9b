package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orderforge/api/internal/platform/httpx"
	"github.com/orderforge/api/internal/services"
)

const maxInventoryBodySize = 8 * 1024

type setStockRequest struct {
	ProductName string `json:"product_name"`
	OnHand      int    `json:"on_hand"`
}

// InventoryHandlers exposes stock lookup and adjustment endpoints.
type InventoryHandlers struct {
	inventory services.InventoryService
}

// NewInventoryHandlers constructs a new InventoryHandlers instance.
func NewInventoryHandlers(inventory services.InventoryService) *InventoryHandlers {
	return &InventoryHandlers{inventory: inventory}
}

// Routes registers the /inventory endpoints.
func (h *InventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{productCode}", h.getStock)
	r.Put("/{productCode}", h.setStock)
}

func (h *InventoryHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	productCode := strings.TrimSpace(chi.URLParam(r, "productCode"))
	if productCode == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product code is required", http.StatusBadRequest))
		return
	}

	stock, err := h.inventory.GetStock(ctx, productCode)
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, stockResponse{Stock: buildStockPayload(stock)})
}

func (h *InventoryHandlers) setStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	productCode := strings.TrimSpace(chi.URLParam(r, "productCode"))
	if productCode == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product code is required", http.StatusBadRequest))
		return
	}

	var req setStockRequest
	if !decodeJSONRequest(w, r, maxInventoryBodySize, &req) {
		return
	}

	stock, err := h.inventory.SetStock(ctx, services.SetStockCommand{
		ProductCode: productCode,
		ProductName: req.ProductName,
		OnHand:      req.OnHand,
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, stockResponse{Stock: buildStockPayload(stock)})
}

type stockResponse struct {
	Stock stockPayload `json:"stock"`
}

type stockPayload struct {
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name,omitempty"`
	OnHand      int    `json:"on_hand"`
	Reserved    int    `json:"reserved"`
	Available   int    `json:"available"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

func buildStockPayload(stock services.InventoryItem) stockPayload {
	return stockPayload{
		ProductCode: stock.ProductCode,
		ProductName: stock.ProductName,
		OnHand:      stock.OnHand,
		Reserved:    stock.Reserved,
		Available:   stock.Available(),
		UpdatedAt:   formatTime(stock.UpdatedAt),
	}
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("stock_not_found", "stock record not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInventoryInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("inventory_invalid_state", err.Error(), http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("inventory_error", "failed to process inventory request", http.StatusInternalServerError))
	}
}
