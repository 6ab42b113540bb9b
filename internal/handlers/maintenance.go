package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/orderforge/api/internal/platform/httpx"
	"github.com/orderforge/api/internal/services"
)

// MaintenanceHandlers exposes operational endpoints under /internal/tools.
type MaintenanceHandlers struct {
	orders services.OrderService
}

// NewMaintenanceHandlers constructs a new MaintenanceHandlers instance.
func NewMaintenanceHandlers(orders services.OrderService) *MaintenanceHandlers {
	return &MaintenanceHandlers{orders: orders}
}

// Routes registers the maintenance endpoints.
func (h *MaintenanceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/orders/promote-pending", h.promotePendingOrders)
}

type promotePendingResponse struct {
	PromotedCount int `json:"promoted_count"`
}

func (h *MaintenanceHandlers) promotePendingOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	promoted, err := h.orders.PromotePendingOrders(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, promotePendingResponse{PromotedCount: promoted})
}
