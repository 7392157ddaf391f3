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
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartProductsRequired   = errors.New("cart service: product repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartNotFound indicates the requested cart line does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// ErrCartUnavailable indicates the cart backend cannot fulfil the request.
var ErrCartUnavailable = errors.New("cart service: unavailable")

const maxCartLineQuantity = 999

// CartServiceDeps wires the cart and product repositories.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	Products   repositories.ProductRepository
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	repo     repositories.CartRepository
	products repositories.ProductRepository
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errCartProductsRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &cartService{
		repo:     deps.Repository,
		products: deps.Products,
		now:      func() time.Time { return deps.Clock().UTC() },
		logger:   logger,
	}, nil
}

// GetCart loads the user's cart. A user without a cart gets an empty one.
func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return normaliseCart(cart, uid), nil
}

// AddItem merges the requested quantity into the product's line, keeping one
// line per product. The merged quantity must not exceed the product's stock.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product_id is required", ErrCartInvalidInput)
	}
	if err := validateCartQuantity(cmd.Quantity); err != nil {
		return Cart{}, err
	}

	product, err := s.lookupActiveProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	cart = normaliseCart(cart, uid)

	now := s.now()
	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)

	total := cmd.Quantity
	found := false
	for i := range items {
		if items[i].ProductID == productID {
			total = items[i].Quantity + cmd.Quantity
			items[i].Quantity = total
			found = true
			break
		}
	}
	if !found {
		items = append(items, domain.CartItem{
			ProductID: productID,
			Quantity:  total,
			AddedAt:   now,
		})
	}
	if total > maxCartLineQuantity {
		return Cart{}, fmt.Errorf("%w: quantity must be %d or fewer", ErrCartInvalidInput, maxCartLineQuantity)
	}
	if total > product.Stock {
		return Cart{}, fmt.Errorf("%w: only %d of %s in stock", ErrCartInvalidInput, product.Stock, product.Name)
	}

	saved, err := s.repo.ReplaceItems(ctx, uid, items, now)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return normaliseCart(saved, uid), nil
}

// UpdateItemQuantity sets the absolute quantity of an existing line.
func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product_id is required", ErrCartInvalidInput)
	}
	if err := validateCartQuantity(cmd.Quantity); err != nil {
		return Cart{}, err
	}

	product, err := s.lookupActiveProduct(ctx, productID)
	if err != nil {
		return Cart{}, err
	}
	if cmd.Quantity > product.Stock {
		return Cart{}, fmt.Errorf("%w: only %d of %s in stock", ErrCartInvalidInput, product.Stock, product.Name)
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	cart = normaliseCart(cart, uid)

	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)

	found := false
	for i := range items {
		if items[i].ProductID == productID {
			items[i].Quantity = cmd.Quantity
			found = true
			break
		}
	}
	if !found {
		return Cart{}, ErrCartNotFound
	}

	saved, err := s.repo.ReplaceItems(ctx, uid, items, s.now())
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return normaliseCart(saved, uid), nil
}

func validateCartQuantity(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrCartInvalidInput)
	}
	if quantity > maxCartLineQuantity {
		return fmt.Errorf("%w: quantity must be %d or fewer", ErrCartInvalidInput, maxCartLineQuantity)
	}
	return nil
}

func (s *cartService) lookupActiveProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return domain.Product{}, fmt.Errorf("%w: product not found", ErrCartInvalidInput)
		}
		return domain.Product{}, s.translateRepoError(err)
	}
	if !product.Active {
		return domain.Product{}, fmt.Errorf("%w: product is not available", ErrCartInvalidInput)
	}
	return product, nil
}

// RemoveItem drops the product's line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	if s == nil || s.repo == nil {
		return Cart{}, ErrCartUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Cart{}, ErrCartInvalidInput
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Cart{}, fmt.Errorf("%w: product_id is required", ErrCartInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, uid)
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	cart = normaliseCart(cart, uid)

	items := make([]domain.CartItem, 0, len(cart.Items))
	found := false
	for _, item := range cart.Items {
		if item.ProductID == productID {
			found = true
			continue
		}
		items = append(items, item)
	}
	if !found {
		return Cart{}, ErrCartNotFound
	}

	saved, err := s.repo.ReplaceItems(ctx, uid, items, s.now())
	if err != nil {
		return Cart{}, s.translateRepoError(err)
	}
	return normaliseCart(saved, uid), nil
}

// ClearCart removes every line. Clearing an empty cart is a no-op.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	if s == nil || s.repo == nil {
		return ErrCartUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return ErrCartInvalidInput
	}

	if err := s.repo.Clear(ctx, uid); err != nil {
		return s.translateRepoError(err)
	}
	return nil
}

func normaliseCart(cart domain.Cart, userID string) domain.Cart {
	if strings.TrimSpace(cart.ID) == "" {
		cart.ID = userID
	}
	if strings.TrimSpace(cart.UserID) == "" {
		cart.UserID = userID
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return cart
}

func (s *cartService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isRepoNotFound(err) {
		return ErrCartNotFound
	}
	return ErrCartUnavailable
}
