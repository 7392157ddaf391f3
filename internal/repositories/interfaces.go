package repositories

import (
	"context"
	"time"

	domain "github.com/mtch-store/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Counters() CounterRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository persists catalog products and their stock levels.
type ProductRepository interface {
	// Insert creates the product and claims its SKU/barcode codes atomically.
	// Returns a RepositoryError with IsConflict when a code is already taken.
	Insert(ctx context.Context, product domain.Product) error
	// Update rewrites the product, migrating code claims when SKU or barcode changed.
	Update(ctx context.Context, product domain.Product) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) (domain.CursorPage[domain.Product], error)
	ListLowStock(ctx context.Context, threshold int, pager domain.Pagination) (domain.CursorPage[domain.Product], error)
	// AdjustStock applies a conditional stock mutation inside a transaction and
	// reports the previous and resulting stock levels.
	AdjustStock(ctx context.Context, req StockAdjustRequest) (domain.StockAdjustment, error)
}

// StockAdjustRequest describes a single stock mutation.
type StockAdjustRequest struct {
	ProductID string
	Mode      domain.StockAdjustmentMode
	Quantity  int
	Reason    string
	Now       time.Time
}

// CartRepository owns the single cart document per user.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	// ReplaceItems rewrites the cart's item set in one write.
	ReplaceItems(ctx context.Context, userID string, items []domain.CartItem, now time.Time) (domain.Cart, error)
	// Clear removes the cart document entirely.
	Clear(ctx context.Context, userID string) error
}

// OrderRepository persists orders and executes the transactional checkout and
// cancellation flows that span orders, carts, and products.
type OrderRepository interface {
	// CreateFromCart runs the authenticated checkout transaction: it reads the
	// user's cart and the referenced products, snapshots unit prices, computes
	// the total, creates the order, and deletes the cart. Stock is not touched.
	CreateFromCart(ctx context.Context, req CheckoutRequest) (domain.Order, error)
	// CreateGuest runs the guest checkout transaction: every requested line is
	// validated against current stock and decremented, all or nothing.
	CreateGuest(ctx context.Context, req GuestCheckoutRequest) (domain.Order, error)
	// Cancel flips a PROCESSING order to CANCELLED and restores the stock of
	// every line item within the same transaction.
	Cancel(ctx context.Context, req CancelRequest) (domain.Order, error)
	// UpdateStatus rewrites the order status without side effects.
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, now time.Time) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[domain.Order], error)
	ListByUser(ctx context.Context, userID string, filter domain.OrderFilter) (domain.CursorPage[domain.Order], error)
	ListByPhone(ctx context.Context, phoneDigits string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
}

// CheckoutRequest carries the pre-validated order header for an authenticated
// checkout. Items and totals are resolved inside the repository transaction.
type CheckoutRequest struct {
	Order domain.Order
	Now   time.Time
}

// GuestLine is a client-supplied order line for guest checkout.
type GuestLine struct {
	ProductID string
	Quantity  int
}

// GuestCheckoutRequest carries the pre-validated order header and the requested
// lines for a guest checkout.
type GuestCheckoutRequest struct {
	Order domain.Order
	Lines []GuestLine
	Now   time.Time
}

// CancelRequest identifies the order to cancel. UserID scopes the cancellation
// to the order owner when non-empty.
type CancelRequest struct {
	OrderID string
	UserID  string
	Now     time.Time
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}
