package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/mtch-store/api/internal/platform/auth"
	"github.com/mtch-store/api/internal/services"
)

// AdminHandlers exposes the staff-facing catalog, order, and inventory endpoints.
type AdminHandlers struct {
	authn     *auth.Authenticator
	catalog   services.CatalogService
	orders    services.OrderService
	inventory services.InventoryService
}

// NewAdminHandlers constructs handlers restricted to staff and admin roles.
func NewAdminHandlers(authn *auth.Authenticator, catalog services.CatalogService, orders services.OrderService, inventory services.InventoryService) *AdminHandlers {
	return &AdminHandlers{
		authn:     authn,
		catalog:   catalog,
		orders:    orders,
		inventory: inventory,
	}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
	}

	r.Post("/products", h.createProduct)
	r.Patch("/products/{productId}", h.updateProduct)

	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderId}/status", h.updateOrderStatus)
	r.Post("/orders/{orderId}/cancel", h.cancelOrder)

	r.Post("/inventory/{productId}/adjustments", h.adjustStock)
	r.Get("/inventory/low-stock", h.listLowStock)
}
