package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/mtch-store/api/internal/domain"
	"github.com/mtch-store/api/internal/repositories"
)

type fakeRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return "repo error" }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

type stubProductRepository struct {
	insertFn       func(context.Context, domain.Product) error
	updateFn       func(context.Context, domain.Product) error
	findByIDFn     func(context.Context, string) (domain.Product, error)
	listFn         func(context.Context, domain.ProductFilter) (domain.CursorPage[domain.Product], error)
	listLowStockFn func(context.Context, int, domain.Pagination) (domain.CursorPage[domain.Product], error)
	adjustStockFn  func(context.Context, repositories.StockAdjustRequest) (domain.StockAdjustment, error)
}

func (s *stubProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepository) Update(ctx context.Context, product domain.Product) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, productID)
	}
	return domain.Product{}, &fakeRepoError{notFound: true}
}

func (s *stubProductRepository) List(ctx context.Context, filter domain.ProductFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Product]{}, nil
}

func (s *stubProductRepository) ListLowStock(ctx context.Context, threshold int, pager domain.Pagination) (domain.CursorPage[domain.Product], error) {
	if s.listLowStockFn != nil {
		return s.listLowStockFn(ctx, threshold, pager)
	}
	return domain.CursorPage[domain.Product]{}, nil
}

func (s *stubProductRepository) AdjustStock(ctx context.Context, req repositories.StockAdjustRequest) (domain.StockAdjustment, error) {
	if s.adjustStockFn != nil {
		return s.adjustStockFn(ctx, req)
	}
	return domain.StockAdjustment{}, nil
}

func testClock() func() time.Time {
	return func() time.Time { return time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC) }
}

func newCatalogServiceForTest(t *testing.T, repo repositories.ProductRepository) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{
		Repository:  repo,
		Clock:       testClock(),
		IDGenerator: func() string { return "prd_test" },
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestCatalogServiceCreateProduct(t *testing.T) {
	var inserted domain.Product
	repo := &stubProductRepository{
		insertFn: func(_ context.Context, product domain.Product) error {
			inserted = product
			return nil
		},
	}
	svc := newCatalogServiceForTest(t, repo)

	product, err := svc.CreateProduct(context.Background(), CreateProductCommand{
		Name:     "  Matcha Whisk  ",
		SKU:      "WHSK-01",
		Price:    2500,
		Currency: "usd",
		Stock:    5,
		Active:   true,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if product.ID != "prd_test" {
		t.Fatalf("expected generated id, got %s", product.ID)
	}
	if product.Name != "Matcha Whisk" {
		t.Fatalf("expected trimmed name, got %q", product.Name)
	}
	if product.Currency != "USD" {
		t.Fatalf("expected uppercase currency, got %s", product.Currency)
	}
	if inserted.ID != product.ID {
		t.Fatalf("expected repository insert with id %s, got %s", product.ID, inserted.ID)
	}
	if !inserted.CreatedAt.Equal(time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected clock timestamp, got %v", inserted.CreatedAt)
	}
}

func TestCatalogServiceCreateProductValidation(t *testing.T) {
	svc := newCatalogServiceForTest(t, &stubProductRepository{})

	cases := []struct {
		name string
		cmd  CreateProductCommand
	}{
		{name: "missing name", cmd: CreateProductCommand{SKU: "A", Price: 100}},
		{name: "missing sku", cmd: CreateProductCommand{Name: "A", Price: 100}},
		{name: "negative price", cmd: CreateProductCommand{Name: "A", SKU: "A", Price: -1}},
		{name: "negative stock", cmd: CreateProductCommand{Name: "A", SKU: "A", Price: 1, Stock: -1}},
		{name: "bad currency", cmd: CreateProductCommand{Name: "A", SKU: "A", Price: 1, Currency: "DOLLARS"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateProduct(context.Background(), tc.cmd); !errors.Is(err, ErrCatalogInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestCatalogServiceCreateProductConflict(t *testing.T) {
	repo := &stubProductRepository{
		insertFn: func(context.Context, domain.Product) error {
			return &fakeRepoError{conflict: true}
		},
	}
	svc := newCatalogServiceForTest(t, repo)

	_, err := svc.CreateProduct(context.Background(), CreateProductCommand{Name: "A", SKU: "DUP", Price: 1})
	if !errors.Is(err, ErrCatalogConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCatalogServiceUpdateProductPartial(t *testing.T) {
	existing := domain.Product{
		ID:       "prd_1",
		Name:     "Old Name",
		SKU:      "SKU-1",
		Price:    1000,
		Currency: "USD",
		Stock:    3,
		Active:   true,
	}
	var updated domain.Product
	repo := &stubProductRepository{
		findByIDFn: func(context.Context, string) (domain.Product, error) {
			return existing, nil
		},
		updateFn: func(_ context.Context, product domain.Product) error {
			updated = product
			return nil
		},
	}
	svc := newCatalogServiceForTest(t, repo)

	newName := "New Name"
	newPrice := int64(1500)
	product, err := svc.UpdateProduct(context.Background(), UpdateProductCommand{
		ProductID: "prd_1",
		Name:      &newName,
		Price:     &newPrice,
	})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if product.Name != "New Name" || product.Price != 1500 {
		t.Fatalf("expected updated fields, got %+v", product)
	}
	if product.SKU != "SKU-1" || product.Stock != 3 {
		t.Fatalf("expected untouched fields preserved, got %+v", product)
	}
	if updated.ID != "prd_1" {
		t.Fatalf("expected repository update for prd_1, got %s", updated.ID)
	}
}

func TestCatalogServiceUpdateProductRequiresFields(t *testing.T) {
	svc := newCatalogServiceForTest(t, &stubProductRepository{})

	if _, err := svc.UpdateProduct(context.Background(), UpdateProductCommand{ProductID: "prd_1"}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid input for empty update, got %v", err)
	}
}

func TestCatalogServiceGetProductNotFound(t *testing.T) {
	repo := &stubProductRepository{
		findByIDFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, &fakeRepoError{notFound: true}
		},
	}
	svc := newCatalogServiceForTest(t, repo)

	if _, err := svc.GetProduct(context.Background(), "missing"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCatalogServiceListProducts(t *testing.T) {
	repo := &stubProductRepository{
		listFn: func(_ context.Context, filter domain.ProductFilter) (domain.CursorPage[domain.Product], error) {
			if filter.Search != "whisk" {
				t.Fatalf("expected trimmed search, got %q", filter.Search)
			}
			return domain.CursorPage[domain.Product]{
				Items:         []domain.Product{{ID: "prd_1"}},
				NextPageToken: "next",
			}, nil
		},
	}
	svc := newCatalogServiceForTest(t, repo)

	page, err := svc.ListProducts(context.Background(), ProductFilter{Search: " whisk "})
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(page.Items) != 1 || page.NextPageToken != "next" {
		t.Fatalf("unexpected page %+v", page)
	}
}
