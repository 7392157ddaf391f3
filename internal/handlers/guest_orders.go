package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mtch-store/api/internal/platform/httpx"
	"github.com/mtch-store/api/internal/services"
)

// GuestOrderHandlers exposes the unauthenticated checkout and order tracking endpoints.
type GuestOrderHandlers struct {
	orders services.OrderService
}

// NewGuestOrderHandlers constructs handlers for guest checkout and phone tracking.
func NewGuestOrderHandlers(orders services.OrderService) *GuestOrderHandlers {
	return &GuestOrderHandlers{orders: orders}
}

// Routes wires the /guest endpoints onto the provided router.
func (h *GuestOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/checkout", h.checkout)
	r.Get("/orders", h.trackByPhone)
}

func (h *GuestOrderHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req guestCheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	items := make([]services.GuestCheckoutItem, len(req.CartItems))
	for i, item := range req.CartItems {
		items[i] = services.GuestCheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	order, err := h.orders.GuestCheckout(ctx, services.GuestCheckoutCommand{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress.toDomain(),
		Notes:           req.Notes,
		Items:           items,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *GuestOrderHandlers) trackByPhone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}

	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "phone query parameter is required", http.StatusBadRequest))
		return
	}

	page, err := h.orders.TrackByPhone(ctx, phone, paginationFromQuery(r))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Orders:        buildOrderPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

type guestCheckoutItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type guestCheckoutRequest struct {
	CustomerName    string                     `json:"customerName"`
	CustomerPhone   string                     `json:"customerPhone"`
	ShippingAddress shippingAddressPayload     `json:"shippingAddress"`
	Notes           string                     `json:"notes"`
	CartItems       []guestCheckoutItemRequest `json:"cartItems"`
}
