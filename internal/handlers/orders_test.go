package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/mtch-store/api/internal/domain"
	"github.com/mtch-store/api/internal/repositories"
	"github.com/mtch-store/api/internal/services"
)

type stubOrderService struct {
	checkoutFunc      func(context.Context, services.CheckoutCommand) (services.Order, error)
	guestCheckoutFunc func(context.Context, services.GuestCheckoutCommand) (services.Order, error)
	cancelFunc        func(context.Context, services.CancelOrderCommand) (services.Order, error)
	transitionFunc    func(context.Context, services.OrderStatusCommand) (services.Order, error)
	getFunc           func(context.Context, string, services.OrderReadOptions) (services.Order, error)
	listFunc          func(context.Context, services.OrderFilter) (domain.CursorPage[services.Order], error)
	listMineFunc      func(context.Context, string, services.OrderFilter) (domain.CursorPage[services.Order], error)
	trackFunc         func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error)
}

func (s *stubOrderService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.Order, error) {
	if s.checkoutFunc != nil {
		return s.checkoutFunc(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderUnavailable
}

func (s *stubOrderService) GuestCheckout(ctx context.Context, cmd services.GuestCheckoutCommand) (services.Order, error) {
	if s.guestCheckoutFunc != nil {
		return s.guestCheckoutFunc(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderUnavailable
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFunc != nil {
		return s.cancelFunc(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusCommand) (services.Order, error) {
	if s.transitionFunc != nil {
		return s.transitionFunc(ctx, cmd)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string, opts services.OrderReadOptions) (services.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, orderID, opts)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
}

func (s *stubOrderService) ListMyOrders(ctx context.Context, userID string, filter services.OrderFilter) (domain.CursorPage[services.Order], error) {
	if s.listMineFunc != nil {
		return s.listMineFunc(ctx, userID, filter)
	}
	return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
}

func (s *stubOrderService) TrackByPhone(ctx context.Context, phone string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.trackFunc != nil {
		return s.trackFunc(ctx, phone, pager)
	}
	return domain.CursorPage[services.Order]{Items: []services.Order{}}, nil
}

const checkoutBody = `{
	"customerName": "Jamie Doe",
	"customerPhone": "5551234567",
	"shippingAddress": {"country": "US", "province": "CA", "street": "1 Matcha Way"}
}`

func TestOrderHandlersCheckout(t *testing.T) {
	service := &stubOrderService{
		checkoutFunc: func(_ context.Context, cmd services.CheckoutCommand) (services.Order, error) {
			if cmd.UserID != "user-7" {
				t.Fatalf("unexpected user id %q", cmd.UserID)
			}
			if cmd.ShippingAddress.Country != "US" {
				t.Fatalf("unexpected address %+v", cmd.ShippingAddress)
			}
			return services.Order{
				ID:          "ord_1",
				OrderNumber: "MTCH-0042",
				UserID:      cmd.UserID,
				Status:      domain.OrderStatusProcessing,
				TotalAmount: 2500,
				Currency:    "USD",
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/checkout", checkoutBody, "user-7"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.OrderNumber != "MTCH-0042" || resp.Order.Status != "PROCESSING" {
		t.Fatalf("unexpected order %+v", resp.Order)
	}
}

func TestOrderHandlersCheckoutEmptyCart(t *testing.T) {
	service := &stubOrderService{
		checkoutFunc: func(context.Context, services.CheckoutCommand) (services.Order, error) {
			return services.Order{}, &repositories.CheckoutError{Code: repositories.CheckoutErrorEmptyCart}
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/checkout", checkoutBody, "user-7"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "cart_empty" {
		t.Fatalf("expected cart_empty, got %q", resp.Error)
	}
}

func TestOrderHandlersCancelWrongState(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(context.Context, services.CancelOrderCommand) (services.Order, error) {
			return services.Order{}, &repositories.OrderStateError{OrderID: "ord_1", Current: domain.OrderStatusEnRoute}
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/ord_1/cancel", "", "user-7"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp struct {
		Error  string `json:"error"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "order_not_cancellable" {
		t.Fatalf("expected order_not_cancellable, got %q", resp.Error)
	}
	if resp.Status != "EN_ROUTE" {
		t.Fatalf("expected EN_ROUTE detail, got %q", resp.Status)
	}
}

func TestOrderHandlersGetOrderScopedToOwner(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(_ context.Context, orderID string, opts services.OrderReadOptions) (services.Order, error) {
			if opts.UserID != "user-7" {
				t.Fatalf("expected owner scoping, got %+v", opts)
			}
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders/ord_9", "", "user-7"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersListMyOrdersRejectsUnknownStatus(t *testing.T) {
	handler := NewOrderHandlers(nil, &stubOrderService{})
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders?status=SHIPPED", "", "user-7"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersListMyOrdersFiltersByStatus(t *testing.T) {
	service := &stubOrderService{
		listMineFunc: func(_ context.Context, userID string, filter services.OrderFilter) (domain.CursorPage[services.Order], error) {
			if userID != "user-7" {
				t.Fatalf("unexpected user id %q", userID)
			}
			if filter.Status == nil || *filter.Status != domain.OrderStatusProcessing {
				t.Fatalf("expected PROCESSING filter, got %+v", filter.Status)
			}
			return domain.CursorPage[services.Order]{
				Items: []services.Order{{ID: "ord_1", Status: domain.OrderStatusProcessing}},
			}, nil
		},
	}

	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders?status=processing", "", "user-7"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Orders) != 1 || resp.Orders[0].ID != "ord_1" {
		t.Fatalf("unexpected orders %+v", resp.Orders)
	}
}
