package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/mtch-store/api/internal/domain"
	"github.com/mtch-store/api/internal/platform/httpx"
	"github.com/mtch-store/api/internal/services"
)

const maxInventoryBodySize = 16 * 1024

func (h *AdminHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxInventoryBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req adjustStockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	adjustment, err := h.inventory.AdjustStock(ctx, services.AdjustStockCommand{
		ProductID: chi.URLParam(r, "productId"),
		Mode:      services.StockAdjustmentMode(req.Mode),
		Quantity:  req.Quantity,
		Reason:    req.Reason,
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, stockAdjustmentResponse{Adjustment: buildStockAdjustmentPayload(adjustment)})
}

func (h *AdminHandlers) listLowStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service is unavailable", http.StatusServiceUnavailable))
		return
	}

	page, err := h.inventory.ListLowStock(ctx, paginationFromQuery(r))
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Products:      buildProductPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("inventory_service_unavailable", "inventory service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("inventory_error", "failed to process inventory request", http.StatusInternalServerError))
	}
}

type adjustStockRequest struct {
	Mode     string `json:"mode"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

type stockAdjustmentPayload struct {
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName,omitempty"`
	Mode          string `json:"mode"`
	Quantity      int    `json:"quantity"`
	PreviousStock int    `json:"previousStock"`
	NewStock      int    `json:"newStock"`
	Reason        string `json:"reason,omitempty"`
	AdjustedAt    string `json:"adjustedAt,omitempty"`
}

type stockAdjustmentResponse struct {
	Adjustment stockAdjustmentPayload `json:"adjustment"`
}

func buildStockAdjustmentPayload(adjustment domain.StockAdjustment) stockAdjustmentPayload {
	return stockAdjustmentPayload{
		ProductID:     adjustment.ProductID,
		ProductName:   adjustment.ProductName,
		Mode:          string(adjustment.Mode),
		Quantity:      adjustment.Quantity,
		PreviousStock: adjustment.PreviousStock,
		NewStock:      adjustment.NewStock,
		Reason:        adjustment.Reason,
		AdjustedAt:    formatTime(adjustment.AdjustedAt),
	}
}
