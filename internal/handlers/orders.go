package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/mtch-store/api/internal/domain"
	"github.com/mtch-store/api/internal/platform/auth"
	"github.com/mtch-store/api/internal/platform/httpx"
	"github.com/mtch-store/api/internal/repositories"
	"github.com/mtch-store/api/internal/services"
)

// OrderHandlers exposes the authenticated order endpoints: checkout, reads, and cancellation.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

const maxOrderBodySize = 64 * 1024

// NewOrderHandlers constructs handlers enforcing Firebase authentication before invoking the order service.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/checkout", h.checkout)
	r.Get("/", h.listMyOrders)
	r.Get("/{orderId}", h.getOrder)
	r.Post("/{orderId}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.Checkout(ctx, services.CheckoutCommand{
		UserID:          uid,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress.toDomain(),
		Notes:           req.Notes,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	filter, err := orderFilterFromQuery(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListMyOrders(ctx, uid, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Orders:        buildOrderPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderId"), services.OrderReadOptions{UserID: uid})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid, ok := h.requireUser(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderId"),
		UserID:  uid,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requireUser(ctx context.Context, w http.ResponseWriter) (string, bool) {
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return identity.UID, true
}

// orderFilterFromQuery parses status, search, and paging query parameters. An
// unknown status is rejected rather than silently ignored.
func orderFilterFromQuery(r *http.Request) (services.OrderFilter, error) {
	filter := services.OrderFilter{
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Pagination: paginationFromQuery(r),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			return services.OrderFilter{}, errors.New("unknown status filter")
		}
		filter.Status = &status
	}
	return filter, nil
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var checkoutErr *repositories.CheckoutError
	if errors.As(err, &checkoutErr) {
		writeCheckoutError(ctx, w, checkoutErr)
		return
	}

	var stateErr *repositories.OrderStateError
	if errors.As(err, &stateErr) {
		httpx.WriteError(ctx, w, httpx.NewError("order_not_cancellable", stateErr.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"status": string(stateErr.Current)}))
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, checkoutErr *repositories.CheckoutError) {
	details := map[string]any{}
	if checkoutErr.ProductID != "" {
		details["productId"] = checkoutErr.ProductID
	}
	if checkoutErr.ProductName != "" {
		details["productName"] = checkoutErr.ProductName
	}

	switch checkoutErr.Code {
	case repositories.CheckoutErrorEmptyCart:
		httpx.WriteError(ctx, w, httpx.NewError("cart_empty", "cart is empty", http.StatusBadRequest))
	case repositories.CheckoutErrorProductNotFound:
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", checkoutErr.Error(), http.StatusBadRequest).
			WithDetails(details))
	case repositories.CheckoutErrorProductInactive:
		httpx.WriteError(ctx, w, httpx.NewError("product_inactive", checkoutErr.Error(), http.StatusBadRequest).
			WithDetails(details))
	case repositories.CheckoutErrorInsufficientStock:
		details["available"] = checkoutErr.Available
		details["requested"] = checkoutErr.Requested
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", checkoutErr.Error(), http.StatusBadRequest).
			WithDetails(details))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_failed", checkoutErr.Error(), http.StatusBadRequest))
	}
}

type shippingAddressPayload struct {
	Country    string `json:"country"`
	Province   string `json:"province"`
	City       string `json:"city,omitempty"`
	Street     string `json:"street"`
	PostalCode string `json:"postalCode,omitempty"`
}

func (p shippingAddressPayload) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress{
		Country:    p.Country,
		Province:   p.Province,
		City:       p.City,
		Street:     p.Street,
		PostalCode: p.PostalCode,
	}
}

func buildShippingAddressPayload(address domain.ShippingAddress) shippingAddressPayload {
	return shippingAddressPayload{
		Country:    address.Country,
		Province:   address.Province,
		City:       address.City,
		Street:     address.Street,
		PostalCode: address.PostalCode,
	}
}

type checkoutRequest struct {
	CustomerName    string                 `json:"customerName"`
	CustomerPhone   string                 `json:"customerPhone"`
	ShippingAddress shippingAddressPayload `json:"shippingAddress"`
	Notes           string                 `json:"notes"`
}

type orderItemPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	OrderNumber     string                 `json:"orderNumber"`
	UserID          string                 `json:"userId,omitempty"`
	CustomerName    string                 `json:"customerName"`
	CustomerPhone   string                 `json:"customerPhone"`
	ShippingAddress shippingAddressPayload `json:"shippingAddress"`
	Notes           string                 `json:"notes,omitempty"`
	Status          string                 `json:"status"`
	Items           []orderItemPayload     `json:"items"`
	TotalAmount     int64                  `json:"totalAmount"`
	Currency        string                 `json:"currency"`
	Guest           bool                   `json:"guest"`
	CreatedAt       string                 `json:"createdAt,omitempty"`
	UpdatedAt       string                 `json:"updatedAt,omitempty"`
	CancelledAt     string                 `json:"cancelledAt,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderItemPayload, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}

	payload := orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		ShippingAddress: buildShippingAddressPayload(order.ShippingAddress),
		Notes:           order.Notes,
		Status:          string(order.Status),
		Items:           items,
		TotalAmount:     order.TotalAmount,
		Currency:        order.Currency,
		Guest:           order.Guest,
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
	}
	if order.CancelledAt != nil {
		payload.CancelledAt = formatTime(*order.CancelledAt)
	}
	return payload
}

func buildOrderPayloads(orders []domain.Order) []orderPayload {
	out := make([]orderPayload, len(orders))
	for i, order := range orders {
		out[i] = buildOrderPayload(order)
	}
	return out
}
