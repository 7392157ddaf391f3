package domain

import (
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// Product describes a sellable catalog item. Prices are stored in the smallest
// currency unit.
type Product struct {
	ID          string
	Name        string
	Description string
	SKU         string
	Barcode     *string
	Price       int64
	Currency    string
	Stock       int
	Active      bool
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Cart aggregates the mutable shopping cart state for a user. A user owns at
// most one cart, and each product appears at most once among its items.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// CartItem stores a single product entry within a cart.
type CartItem struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// Quantity returns the cart quantity for the given product, zero when absent.
func (c Cart) Quantity(productID string) int {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusProcessing is the initial state of every new order.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusConfirmed indicates staff accepted the order.
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusEnRoute indicates the order left for delivery.
	OrderStatusEnRoute OrderStatus = "EN_ROUTE"
	// OrderStatusDelivered is the terminal success state.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled indicates the order was cancelled while processing.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatuses lists every recognised order status.
var OrderStatuses = []OrderStatus{
	OrderStatusProcessing,
	OrderStatusConfirmed,
	OrderStatusEnRoute,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// ParseOrderStatus maps the wire representation to an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	candidate := OrderStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range OrderStatuses {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Cancellable reports whether an order in this state may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusProcessing
}

// ShippingAddress captures the delivery destination embedded in an order.
type ShippingAddress struct {
	Country    string
	Province   string
	City       string
	Street     string
	PostalCode string
}

// OrderItem mirrors a product at the time the order was placed.
type OrderItem struct {
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
	Subtotal  int64
}

// Order captures an order header together with its embedded line items. UserID
// is empty for guest orders.
type Order struct {
	ID              string
	OrderNumber     string
	UserID          string
	CustomerName    string
	CustomerPhone   string
	PhoneDigits     string
	ShippingAddress ShippingAddress
	Notes           string
	Status          OrderStatus
	Items           []OrderItem
	TotalAmount     int64
	Currency        string
	Guest           bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CancelledAt     *time.Time
}

// StockAdjustmentMode enumerates the supported stock mutation modes.
type StockAdjustmentMode string

const (
	// StockAdjustAdd increases stock by the given quantity.
	StockAdjustAdd StockAdjustmentMode = "add"
	// StockAdjustRemove decreases stock, flooring the result at zero.
	StockAdjustRemove StockAdjustmentMode = "remove"
	// StockAdjustSet replaces stock with the given quantity.
	StockAdjustSet StockAdjustmentMode = "set"
)

// ParseStockAdjustmentMode maps the wire representation to a mode.
func ParseStockAdjustmentMode(value string) (StockAdjustmentMode, bool) {
	switch StockAdjustmentMode(strings.ToLower(strings.TrimSpace(value))) {
	case StockAdjustAdd:
		return StockAdjustAdd, true
	case StockAdjustRemove:
		return StockAdjustRemove, true
	case StockAdjustSet:
		return StockAdjustSet, true
	default:
		return "", false
	}
}

// StockAdjustment records the outcome of a stock mutation.
type StockAdjustment struct {
	ProductID     string
	ProductName   string
	Mode          StockAdjustmentMode
	Quantity      int
	PreviousStock int
	NewStock      int
	Reason        string
	AdjustedAt    time.Time
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Search     string
	ActiveOnly bool
	Pagination Pagination
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	Status     *OrderStatus
	Search     string
	Pagination Pagination
}

// CursorPage carries a single page of results along with the continuation token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// NormalizePhone strips every non-digit rune from the input.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
