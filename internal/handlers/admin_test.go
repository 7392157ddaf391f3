package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/mtch-store/api/internal/domain"
	"github.com/mtch-store/api/internal/services"
)

type stubInventoryService struct {
	adjustFunc   func(context.Context, services.AdjustStockCommand) (services.StockAdjustment, error)
	lowStockFunc func(context.Context, services.Pagination) (domain.CursorPage[services.Product], error)
}

func (s *stubInventoryService) AdjustStock(ctx context.Context, cmd services.AdjustStockCommand) (services.StockAdjustment, error) {
	if s.adjustFunc != nil {
		return s.adjustFunc(ctx, cmd)
	}
	return services.StockAdjustment{}, services.ErrInventoryUnavailable
}

func (s *stubInventoryService) ListLowStock(ctx context.Context, pager services.Pagination) (domain.CursorPage[services.Product], error) {
	if s.lowStockFunc != nil {
		return s.lowStockFunc(ctx, pager)
	}
	return domain.CursorPage[services.Product]{Items: []services.Product{}}, nil
}

func newAdminRouter(catalog services.CatalogService, orders services.OrderService, inventory services.InventoryService) chi.Router {
	handler := NewAdminHandlers(nil, catalog, orders, inventory)
	router := chi.NewRouter()
	router.Route("/admin", handler.Routes)
	return router
}

func TestAdminHandlersCreateProduct(t *testing.T) {
	catalog := &stubCatalogService{
		createFunc: func(_ context.Context, cmd services.CreateProductCommand) (services.Product, error) {
			if cmd.Name != "Matcha Whisk" || cmd.Price != 2500 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.Product{ID: "prd_1", Name: cmd.Name, SKU: cmd.SKU, Price: cmd.Price, Currency: "USD"}, nil
		},
	}
	router := newAdminRouter(catalog, &stubOrderService{}, &stubInventoryService{})

	body := `{"name": "Matcha Whisk", "sku": "WHSK-01", "price": 2500, "stock": 5, "active": true}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/products", body, "staff-1"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Product.ID != "prd_1" {
		t.Fatalf("unexpected product %+v", resp.Product)
	}
}

func TestAdminHandlersUpdateProductPartial(t *testing.T) {
	catalog := &stubCatalogService{
		updateFunc: func(_ context.Context, cmd services.UpdateProductCommand) (services.Product, error) {
			if cmd.ProductID != "prd_1" {
				t.Fatalf("unexpected product id %q", cmd.ProductID)
			}
			if cmd.Price == nil || *cmd.Price != 3000 {
				t.Fatalf("expected price update, got %+v", cmd.Price)
			}
			if cmd.Name != nil {
				t.Fatalf("name must stay untouched, got %+v", cmd.Name)
			}
			return services.Product{ID: cmd.ProductID, Price: *cmd.Price}, nil
		},
	}
	router := newAdminRouter(catalog, &stubOrderService{}, &stubInventoryService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPatch, "/admin/products/prd_1", `{"price": 3000}`, "staff-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAdminHandlersUpdateOrderStatus(t *testing.T) {
	orders := &stubOrderService{
		transitionFunc: func(_ context.Context, cmd services.OrderStatusCommand) (services.Order, error) {
			if cmd.OrderID != "ord_1" || cmd.Status != services.OrderStatus("CONFIRMED") {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusConfirmed}, nil
		},
	}
	router := newAdminRouter(&stubCatalogService{}, orders, &stubInventoryService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPatch, "/admin/orders/ord_1/status", `{"status": "CONFIRMED"}`, "staff-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Order.Status != "CONFIRMED" {
		t.Fatalf("expected CONFIRMED, got %q", resp.Order.Status)
	}
}

func TestAdminHandlersUpdateOrderStatusInvalid(t *testing.T) {
	orders := &stubOrderService{
		transitionFunc: func(_ context.Context, cmd services.OrderStatusCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidInput
		},
	}
	router := newAdminRouter(&stubCatalogService{}, orders, &stubInventoryService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPatch, "/admin/orders/ord_1/status", `{"status": "SHIPPED"}`, "staff-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestAdminHandlersAdjustStock(t *testing.T) {
	inventory := &stubInventoryService{
		adjustFunc: func(_ context.Context, cmd services.AdjustStockCommand) (services.StockAdjustment, error) {
			if cmd.ProductID != "prd_1" || cmd.Mode != domain.StockAdjustRemove || cmd.Quantity != 3 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.StockAdjustment{
				ProductID:     cmd.ProductID,
				Mode:          cmd.Mode,
				Quantity:      cmd.Quantity,
				PreviousStock: 5,
				NewStock:      2,
			}, nil
		},
	}
	router := newAdminRouter(&stubCatalogService{}, &stubOrderService{}, inventory)

	body := `{"mode": "remove", "quantity": 3, "reason": "damaged"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/admin/inventory/prd_1/adjustments", body, "staff-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp stockAdjustmentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Adjustment.PreviousStock != 5 || resp.Adjustment.NewStock != 2 {
		t.Fatalf("unexpected adjustment %+v", resp.Adjustment)
	}
}

func TestAdminHandlersListLowStock(t *testing.T) {
	inventory := &stubInventoryService{
		lowStockFunc: func(_ context.Context, _ services.Pagination) (domain.CursorPage[services.Product], error) {
			return domain.CursorPage[services.Product]{
				Items: []services.Product{{ID: "prd_1", Stock: 2}},
			}, nil
		},
	}
	router := newAdminRouter(&stubCatalogService{}, &stubOrderService{}, inventory)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/admin/inventory/low-stock", "", "staff-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].Stock != 2 {
		t.Fatalf("unexpected products %+v", resp.Products)
	}
}
