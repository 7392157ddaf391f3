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

type stubCatalogService struct {
	createFunc func(context.Context, services.CreateProductCommand) (services.Product, error)
	updateFunc func(context.Context, services.UpdateProductCommand) (services.Product, error)
	getFunc    func(context.Context, string) (services.Product, error)
	listFunc   func(context.Context, services.ProductFilter) (domain.CursorPage[services.Product], error)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.CreateProductCommand) (services.Product, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Product{}, services.ErrCatalogUnavailable
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpdateProductCommand) (services.Product, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Product{}, services.ErrCatalogUnavailable
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, productID)
	}
	return services.Product{}, services.ErrCatalogNotFound
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductFilter) (domain.CursorPage[services.Product], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Product]{Items: []services.Product{}}, nil
}

func TestProductHandlersListProducts(t *testing.T) {
	service := &stubCatalogService{
		listFunc: func(_ context.Context, filter services.ProductFilter) (domain.CursorPage[services.Product], error) {
			if !filter.ActiveOnly {
				t.Fatalf("public listing must be active-only")
			}
			if filter.Search != "whisk" {
				t.Fatalf("expected search whisk, got %q", filter.Search)
			}
			if filter.Pagination.PageSize != 20 {
				t.Fatalf("expected page size 20, got %d", filter.Pagination.PageSize)
			}
			return domain.CursorPage[services.Product]{
				Items: []services.Product{
					{ID: "prd_1", Name: "Matcha Whisk", SKU: "WHSK-01", Price: 2500, Currency: "USD", Stock: 5, Active: true},
				},
				NextPageToken: "token-2",
			}, nil
		},
	}

	handler := NewProductHandlers(service)
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/products?search=whisk&pageSize=20", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp productListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Products) != 1 || resp.Products[0].ID != "prd_1" {
		t.Fatalf("unexpected products %+v", resp.Products)
	}
	if resp.NextPageToken != "token-2" {
		t.Fatalf("expected next page token, got %q", resp.NextPageToken)
	}
}

func TestProductHandlersGetProductNotFound(t *testing.T) {
	handler := NewProductHandlers(&stubCatalogService{})
	router := chi.NewRouter()
	router.Route("/products", handler.Routes)

	req := httptest.NewRequest(http.MethodGet, "/products/missing", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error != "product_not_found" {
		t.Fatalf("expected product_not_found, got %q", resp.Error)
	}
}
