package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/mtch-store/api/internal/domain"
	"github.com/mtch-store/api/internal/repositories"
)

var (
	errInventoryRepositoryRequired = errors.New("inventory service: repository is required")
	errInventoryClockRequired      = errors.New("inventory service: clock is required")
)

// ErrInventoryInvalidInput indicates the caller supplied invalid input.
var ErrInventoryInvalidInput = errors.New("inventory service: invalid input")

// ErrInventoryNotFound indicates the product does not exist.
var ErrInventoryNotFound = errors.New("inventory service: not found")

// ErrInventoryUnavailable indicates the inventory backend cannot fulfil the request.
var ErrInventoryUnavailable = errors.New("inventory service: unavailable")

const defaultLowStockThreshold = 10

// InventoryServiceDeps wires the product repository and the low-stock threshold.
type InventoryServiceDeps struct {
	Repository        repositories.ProductRepository
	LowStockThreshold int
	Clock             func() time.Time
	Logger            func(context.Context, string, map[string]any)
}

type inventoryService struct {
	repo      repositories.ProductRepository
	threshold int
	now       func() time.Time
	logger    func(context.Context, string, map[string]any)
}

// NewInventoryService constructs an InventoryService enforcing dependency validation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Repository == nil {
		return nil, errInventoryRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errInventoryClockRequired
	}

	threshold := deps.LowStockThreshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		repo:      deps.Repository,
		threshold: threshold,
		now:       func() time.Time { return deps.Clock().UTC() },
		logger:    logger,
	}, nil
}

// AdjustStock applies a manual stock mutation. Removals floor at zero rather
// than failing, so reconciling a miscount can never go negative.
func (s *inventoryService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (StockAdjustment, error) {
	if s == nil || s.repo == nil {
		return StockAdjustment{}, ErrInventoryUnavailable
	}

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return StockAdjustment{}, fmt.Errorf("%w: product_id is required", ErrInventoryInvalidInput)
	}

	mode, ok := domain.ParseStockAdjustmentMode(string(cmd.Mode))
	if !ok {
		return StockAdjustment{}, fmt.Errorf("%w: unknown mode %q", ErrInventoryInvalidInput, cmd.Mode)
	}
	switch mode {
	case domain.StockAdjustAdd, domain.StockAdjustRemove:
		if cmd.Quantity <= 0 {
			return StockAdjustment{}, fmt.Errorf("%w: quantity must be greater than zero", ErrInventoryInvalidInput)
		}
	case domain.StockAdjustSet:
		if cmd.Quantity < 0 {
			return StockAdjustment{}, fmt.Errorf("%w: quantity must be non-negative", ErrInventoryInvalidInput)
		}
	}

	adjustment, err := s.repo.AdjustStock(ctx, repositories.StockAdjustRequest{
		ProductID: productID,
		Mode:      mode,
		Quantity:  cmd.Quantity,
		Reason:    strings.TrimSpace(cmd.Reason),
		Now:       s.now(),
	})
	if err != nil {
		if isRepoNotFound(err) {
			return StockAdjustment{}, ErrInventoryNotFound
		}
		return StockAdjustment{}, ErrInventoryUnavailable
	}

	if adjustment.NewStock <= s.threshold {
		s.logger(ctx, "inventory.low_stock", map[string]any{
			"productID": adjustment.ProductID,
			"stock":     adjustment.NewStock,
			"threshold": s.threshold,
		})
	}

	return adjustment, nil
}

// ListLowStock pages through products at or below the configured threshold.
func (s *inventoryService) ListLowStock(ctx context.Context, pager Pagination) (domain.CursorPage[Product], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Product]{}, ErrInventoryUnavailable
	}

	page, err := s.repo.ListLowStock(ctx, s.threshold, pager)
	if err != nil {
		return domain.CursorPage[Product]{}, ErrInventoryUnavailable
	}
	if page.Items == nil {
		page.Items = []Product{}
	}
	return page, nil
}
