package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/mtch-store/api/internal/domain"
	"github.com/mtch-store/api/internal/repositories"
)

var (
	errCatalogRepositoryRequired = errors.New("catalog service: repository is required")
	errCatalogClockRequired      = errors.New("catalog service: clock is required")
)

// ErrCatalogInvalidInput indicates the caller supplied invalid input.
var ErrCatalogInvalidInput = errors.New("catalog service: invalid input")

// ErrCatalogNotFound indicates the requested product does not exist.
var ErrCatalogNotFound = errors.New("catalog service: not found")

// ErrCatalogConflict indicates a SKU or barcode is already claimed by another product.
var ErrCatalogConflict = errors.New("catalog service: conflict")

// ErrCatalogUnavailable indicates the catalog backend cannot fulfil the request.
var ErrCatalogUnavailable = errors.New("catalog service: unavailable")

const (
	maxProductNameLength        = 200
	maxProductDescriptionLength = 4000
)

// CatalogServiceDeps wires the product repository and ambient helpers.
type CatalogServiceDeps struct {
	Repository      repositories.ProductRepository
	Clock           func() time.Time
	IDGenerator     func() string
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
}

type catalogService struct {
	repo     repositories.ProductRepository
	now      func() time.Time
	newID    func() string
	currency string
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errCatalogRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCatalogClockRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return "prd_" + ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &catalogService{
		repo:     deps.Repository,
		now:      func() time.Time { return deps.Clock().UTC() },
		newID:    idGen,
		currency: currency,
		logger:   logger,
	}, nil
}

// CreateProduct validates and persists a new catalog product.
func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}

	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if len(name) > maxProductNameLength {
		return Product{}, fmt.Errorf("%w: name must be %d characters or fewer", ErrCatalogInvalidInput, maxProductNameLength)
	}

	description := strings.TrimSpace(cmd.Description)
	if len(description) > maxProductDescriptionLength {
		return Product{}, fmt.Errorf("%w: description must be %d characters or fewer", ErrCatalogInvalidInput, maxProductDescriptionLength)
	}

	sku := strings.TrimSpace(cmd.SKU)
	if sku == "" {
		return Product{}, fmt.Errorf("%w: sku is required", ErrCatalogInvalidInput)
	}

	var barcode *string
	if cmd.Barcode != nil {
		trimmed := strings.TrimSpace(*cmd.Barcode)
		if trimmed != "" {
			barcode = &trimmed
		}
	}

	if cmd.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must be non-negative", ErrCatalogInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must be non-negative", ErrCatalogInvalidInput)
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}
	if err := validateCurrency(currency); err != nil {
		return Product{}, err
	}

	now := s.now()
	product := domain.Product{
		ID:          s.newID(),
		Name:        name,
		Description: description,
		SKU:         sku,
		Barcode:     barcode,
		Price:       cmd.Price,
		Currency:    currency,
		Stock:       cmd.Stock,
		Active:      cmd.Active,
		ImageURL:    strings.TrimSpace(cmd.ImageURL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, product); err != nil {
		if isRepoConflict(err) {
			return Product{}, fmt.Errorf("%w: sku or barcode already in use", ErrCatalogConflict)
		}
		return Product{}, s.translateRepoError(err)
	}

	s.logger(ctx, "catalog.product_created", map[string]any{
		"productID": product.ID,
		"sku":       product.SKU,
	})
	return product, nil
}

// UpdateProduct applies a partial update, leaving nil fields untouched.
func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}

	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product_id is required", ErrCatalogInvalidInput)
	}

	if cmd.Name == nil && cmd.Description == nil && cmd.SKU == nil && cmd.Barcode == nil &&
		cmd.Price == nil && cmd.Currency == nil && cmd.Active == nil && cmd.ImageURL == nil {
		return Product{}, fmt.Errorf("%w: no fields to update", ErrCatalogInvalidInput)
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Product{}, fmt.Errorf("%w: name cannot be empty", ErrCatalogInvalidInput)
		}
		if len(name) > maxProductNameLength {
			return Product{}, fmt.Errorf("%w: name must be %d characters or fewer", ErrCatalogInvalidInput, maxProductNameLength)
		}
		product.Name = name
	}
	if cmd.Description != nil {
		description := strings.TrimSpace(*cmd.Description)
		if len(description) > maxProductDescriptionLength {
			return Product{}, fmt.Errorf("%w: description must be %d characters or fewer", ErrCatalogInvalidInput, maxProductDescriptionLength)
		}
		product.Description = description
	}
	if cmd.SKU != nil {
		sku := strings.TrimSpace(*cmd.SKU)
		if sku == "" {
			return Product{}, fmt.Errorf("%w: sku cannot be empty", ErrCatalogInvalidInput)
		}
		product.SKU = sku
	}
	if cmd.Barcode != nil {
		trimmed := strings.TrimSpace(*cmd.Barcode)
		if trimmed == "" {
			product.Barcode = nil
		} else {
			product.Barcode = &trimmed
		}
	}
	if cmd.Price != nil {
		if *cmd.Price < 0 {
			return Product{}, fmt.Errorf("%w: price must be non-negative", ErrCatalogInvalidInput)
		}
		product.Price = *cmd.Price
	}
	if cmd.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*cmd.Currency))
		if err := validateCurrency(currency); err != nil {
			return Product{}, err
		}
		product.Currency = currency
	}
	if cmd.Active != nil {
		product.Active = *cmd.Active
	}
	if cmd.ImageURL != nil {
		product.ImageURL = strings.TrimSpace(*cmd.ImageURL)
	}

	product.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, product); err != nil {
		if isRepoConflict(err) {
			return Product{}, fmt.Errorf("%w: sku or barcode already in use", ErrCatalogConflict)
		}
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

// GetProduct loads a single product.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	if s == nil || s.repo == nil {
		return Product{}, ErrCatalogUnavailable
	}

	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product_id is required", ErrCatalogInvalidInput)
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Product{}, s.translateRepoError(err)
	}
	return product, nil
}

// ListProducts pages through the catalog.
func (s *catalogService) ListProducts(ctx context.Context, filter ProductFilter) (domain.CursorPage[Product], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Product]{}, ErrCatalogUnavailable
	}

	filter.Search = strings.TrimSpace(filter.Search)

	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Product]{}, s.translateRepoError(err)
	}
	if page.Items == nil {
		page.Items = []Product{}
	}
	return page, nil
}

func validateCurrency(code string) error {
	if len(code) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrCatalogInvalidInput)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: currency must be a 3-letter ISO code", ErrCatalogInvalidInput)
		}
	}
	return nil
}

func (s *catalogService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isRepoNotFound(err):
		return ErrCatalogNotFound
	case isRepoConflict(err):
		return ErrCatalogConflict
	default:
		return ErrCatalogUnavailable
	}
}
