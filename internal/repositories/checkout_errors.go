package repositories

import (
	"fmt"

	domain "github.com/mtch-store/api/internal/domain"
)

// CheckoutErrorCode enumerates failure reasons for checkout transactions.
type CheckoutErrorCode string

const (
	// CheckoutErrorEmptyCart indicates the user's cart has no items.
	CheckoutErrorEmptyCart CheckoutErrorCode = "checkout_empty_cart"
	// CheckoutErrorProductNotFound indicates a referenced product does not exist.
	CheckoutErrorProductNotFound CheckoutErrorCode = "checkout_product_not_found"
	// CheckoutErrorProductInactive indicates a referenced product is not for sale.
	CheckoutErrorProductInactive CheckoutErrorCode = "checkout_product_inactive"
	// CheckoutErrorInsufficientStock indicates a line requests more units than available.
	CheckoutErrorInsufficientStock CheckoutErrorCode = "checkout_insufficient_stock"
)

// CheckoutError carries line-level context so handlers can report which product
// failed and how many units remain.
type CheckoutError struct {
	Code        CheckoutErrorCode
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

// Error implements the error interface.
func (e *CheckoutError) Error() string {
	if e == nil {
		return ""
	}
	switch e.Code {
	case CheckoutErrorInsufficientStock:
		return fmt.Sprintf("%s: product %q has %d in stock, %d requested", e.Code, e.ProductName, e.Available, e.Requested)
	case CheckoutErrorProductNotFound, CheckoutErrorProductInactive:
		return fmt.Sprintf("%s: product %s", e.Code, e.ProductID)
	default:
		return string(e.Code)
	}
}

// OrderStateError signals an operation attempted against an order in the wrong
// lifecycle state, such as cancelling a delivered order.
type OrderStateError struct {
	OrderID string
	Current domain.OrderStatus
}

// Error implements the error interface.
func (e *OrderStateError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("order %s is %s and cannot be cancelled", e.OrderID, e.Current)
}
