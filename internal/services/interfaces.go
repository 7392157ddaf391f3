package services

import (
	"context"
	"time"

	domain "github.com/mtch-store/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination          = domain.Pagination
	Product             = domain.Product
	ProductFilter       = domain.ProductFilter
	Cart                = domain.Cart
	CartItem            = domain.CartItem
	Order               = domain.Order
	OrderItem           = domain.OrderItem
	OrderStatus         = domain.OrderStatus
	OrderFilter         = domain.OrderFilter
	ShippingAddress     = domain.ShippingAddress
	StockAdjustment     = domain.StockAdjustment
	StockAdjustmentMode = domain.StockAdjustmentMode
)

// CatalogService manages the sellable product catalog.
type CatalogService interface {
	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) (domain.CursorPage[Product], error)
}

// CreateProductCommand carries the fields for a new catalog product.
type CreateProductCommand struct {
	Name        string
	Description string
	SKU         string
	Barcode     *string
	Price       int64
	Currency    string
	Stock       int
	Active      bool
	ImageURL    string
}

// UpdateProductCommand carries a partial product update. Nil fields are left untouched.
type UpdateProductCommand struct {
	ProductID   string
	Name        *string
	Description *string
	SKU         *string
	Barcode     *string
	Price       *int64
	Currency    *string
	Active      *bool
	ImageURL    *string
}

// CartService manages the single cart each authenticated user owns.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	// AddItem merges the requested quantity into the product's cart line.
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	// UpdateItemQuantity replaces the quantity of an existing cart line.
	UpdateItemQuantity(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// AddCartItemCommand adds quantity to a single cart line.
type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// UpdateCartItemCommand sets the absolute quantity of an existing cart line.
type UpdateCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// RemoveCartItemCommand removes a single cart line.
type RemoveCartItemCommand struct {
	UserID    string
	ProductID string
}

// OrderService encapsulates checkout, cancellation, status transitions, and order reads.
type OrderService interface {
	// Checkout converts the authenticated user's cart into an order.
	Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error)
	// GuestCheckout creates an order from client-supplied items, decrementing stock.
	GuestCheckout(ctx context.Context, cmd GuestCheckoutCommand) (Order, error)
	// Cancel cancels a PROCESSING order and restores its stock.
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	// TransitionStatus moves an order through its lifecycle. Staff only.
	TransitionStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) (domain.CursorPage[Order], error)
	ListMyOrders(ctx context.Context, userID string, filter OrderFilter) (domain.CursorPage[Order], error)
	// TrackByPhone lists guest orders matching a phone number.
	TrackByPhone(ctx context.Context, phone string, pager Pagination) (domain.CursorPage[Order], error)
}

// CheckoutCommand carries the shipping details for an authenticated checkout.
// The items come from the user's stored cart.
type CheckoutCommand struct {
	UserID          string
	CustomerName    string
	CustomerPhone   string
	ShippingAddress ShippingAddress
	Notes           string
}

// GuestCheckoutItem is a client-supplied order line.
type GuestCheckoutItem struct {
	ProductID string
	Quantity  int
}

// GuestCheckoutCommand carries the shipping details and requested items for a
// guest checkout.
type GuestCheckoutCommand struct {
	CustomerName    string
	CustomerPhone   string
	ShippingAddress ShippingAddress
	Notes           string
	Items           []GuestCheckoutItem
}

// CancelOrderCommand identifies the order to cancel. UserID scopes the
// cancellation to the order owner; staff cancellations leave it empty.
type CancelOrderCommand struct {
	OrderID string
	UserID  string
}

// OrderStatusCommand requests a lifecycle transition.
type OrderStatusCommand struct {
	OrderID string
	Status  OrderStatus
}

// OrderReadOptions scopes a single-order read. When UserID is set the order
// must belong to that user.
type OrderReadOptions struct {
	UserID string
}

// InventoryService manages stock levels outside the checkout flows.
type InventoryService interface {
	// AdjustStock applies an add, remove, or set mutation and reports the
	// previous and resulting stock levels.
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (StockAdjustment, error)
	// ListLowStock pages through products at or below the low-stock threshold.
	ListLowStock(ctx context.Context, pager Pagination) (domain.CursorPage[Product], error)
}

// AdjustStockCommand describes a manual stock mutation.
type AdjustStockCommand struct {
	ProductID string
	Mode      StockAdjustmentMode
	Quantity  int
	Reason    string
}

// CounterService issues formatted, strictly increasing order numbers.
type CounterService interface {
	NextOrderNumber(ctx context.Context) (string, error)
}

// Audience routes an order event to its subscriber group.
type Audience string

const (
	// AudienceAdmin targets back-office subscribers.
	AudienceAdmin Audience = "admin"
	// AudienceUser targets the single user named by UserID.
	AudienceUser Audience = "user"
)

// Order event names.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status.changed"
	EventOrderCancelled     = "order.cancelled"
)

// OrderEventMessage is the payload published for order lifecycle events.
type OrderEventMessage struct {
	Event       string         `json:"event"`
	Audience    Audience       `json:"audience"`
	UserID      string         `json:"userId,omitempty"`
	OrderID     string         `json:"orderId"`
	OrderNumber string         `json:"orderNumber,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// OrderEventPublisher delivers order events to the notification fan-out.
// Implementations return the broker-assigned message ID.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
