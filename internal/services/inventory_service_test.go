package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/mtch-store/api/internal/domain"
	"github.com/mtch-store/api/internal/repositories"
)

func newInventoryServiceForTest(t *testing.T, repo repositories.ProductRepository, threshold int) InventoryService {
	t.Helper()
	svc, err := NewInventoryService(InventoryServiceDeps{
		Repository:        repo,
		LowStockThreshold: threshold,
		Clock:             testClock(),
	})
	if err != nil {
		t.Fatalf("new inventory service: %v", err)
	}
	return svc
}

func TestInventoryServiceAdjustStock(t *testing.T) {
	var captured repositories.StockAdjustRequest
	repo := &stubProductRepository{
		adjustStockFn: func(_ context.Context, req repositories.StockAdjustRequest) (domain.StockAdjustment, error) {
			captured = req
			return domain.StockAdjustment{
				ProductID:     req.ProductID,
				Mode:          req.Mode,
				Quantity:      req.Quantity,
				PreviousStock: 5,
				NewStock:      8,
			}, nil
		},
	}
	svc := newInventoryServiceForTest(t, repo, 10)

	adjustment, err := svc.AdjustStock(context.Background(), AdjustStockCommand{
		ProductID: "prd_1",
		Mode:      domain.StockAdjustAdd,
		Quantity:  3,
		Reason:    " restock ",
	})
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if adjustment.PreviousStock != 5 || adjustment.NewStock != 8 {
		t.Fatalf("expected previous 5 and new 8, got %+v", adjustment)
	}
	if captured.Reason != "restock" {
		t.Fatalf("expected trimmed reason, got %q", captured.Reason)
	}
}

func TestInventoryServiceAdjustStockValidation(t *testing.T) {
	svc := newInventoryServiceForTest(t, &stubProductRepository{}, 10)

	cases := []struct {
		name string
		cmd  AdjustStockCommand
	}{
		{name: "missing product", cmd: AdjustStockCommand{Mode: domain.StockAdjustAdd, Quantity: 1}},
		{name: "unknown mode", cmd: AdjustStockCommand{ProductID: "prd_1", Mode: "destroy", Quantity: 1}},
		{name: "zero add", cmd: AdjustStockCommand{ProductID: "prd_1", Mode: domain.StockAdjustAdd, Quantity: 0}},
		{name: "zero remove", cmd: AdjustStockCommand{ProductID: "prd_1", Mode: domain.StockAdjustRemove, Quantity: 0}},
		{name: "negative set", cmd: AdjustStockCommand{ProductID: "prd_1", Mode: domain.StockAdjustSet, Quantity: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AdjustStock(context.Background(), tc.cmd); !errors.Is(err, ErrInventoryInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestInventoryServiceAdjustStockSetZeroAllowed(t *testing.T) {
	repo := &stubProductRepository{
		adjustStockFn: func(_ context.Context, req repositories.StockAdjustRequest) (domain.StockAdjustment, error) {
			return domain.StockAdjustment{ProductID: req.ProductID, NewStock: 0, PreviousStock: 7}, nil
		},
	}
	svc := newInventoryServiceForTest(t, repo, 10)

	adjustment, err := svc.AdjustStock(context.Background(), AdjustStockCommand{
		ProductID: "prd_1",
		Mode:      domain.StockAdjustSet,
		Quantity:  0,
	})
	if err != nil {
		t.Fatalf("set to zero: %v", err)
	}
	if adjustment.NewStock != 0 {
		t.Fatalf("expected new stock 0, got %d", adjustment.NewStock)
	}
}

func TestInventoryServiceAdjustStockNotFound(t *testing.T) {
	repo := &stubProductRepository{
		adjustStockFn: func(context.Context, repositories.StockAdjustRequest) (domain.StockAdjustment, error) {
			return domain.StockAdjustment{}, &fakeRepoError{notFound: true}
		},
	}
	svc := newInventoryServiceForTest(t, repo, 10)

	_, err := svc.AdjustStock(context.Background(), AdjustStockCommand{
		ProductID: "missing",
		Mode:      domain.StockAdjustAdd,
		Quantity:  1,
	})
	if !errors.Is(err, ErrInventoryNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInventoryServiceListLowStockUsesThreshold(t *testing.T) {
	var captured int
	repo := &stubProductRepository{
		listLowStockFn: func(_ context.Context, threshold int, _ domain.Pagination) (domain.CursorPage[domain.Product], error) {
			captured = threshold
			return domain.CursorPage[domain.Product]{Items: []domain.Product{{ID: "prd_1", Stock: 2}}}, nil
		},
	}
	svc := newInventoryServiceForTest(t, repo, 5)

	page, err := svc.ListLowStock(context.Background(), Pagination{})
	if err != nil {
		t.Fatalf("list low stock: %v", err)
	}
	if captured != 5 {
		t.Fatalf("expected threshold 5, got %d", captured)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one product, got %d", len(page.Items))
	}
}
