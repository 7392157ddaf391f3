package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/mtch-store/api/internal/domain"
	pfirestore "github.com/mtch-store/api/internal/platform/firestore"
	"github.com/mtch-store/api/internal/repositories"
)

const (
	ordersCollection = "orders"

	defaultOrderPageSize = 50
	maxOrderPageSize     = 200
)

type orderDocument struct {
	OrderNumber     string              `firestore:"orderNumber"`
	UserID          string              `firestore:"userId,omitempty"`
	CustomerName    string              `firestore:"customerName"`
	CustomerPhone   string              `firestore:"customerPhone"`
	PhoneDigits     string              `firestore:"phoneDigits"`
	ShippingAddress addressDocument     `firestore:"shippingAddress"`
	Notes           string              `firestore:"notes,omitempty"`
	Status          string              `firestore:"status"`
	Items           []orderItemDocument `firestore:"items"`
	TotalAmount     int64               `firestore:"totalAmount"`
	Currency        string              `firestore:"currency"`
	Guest           bool                `firestore:"guest"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	CancelledAt     *time.Time          `firestore:"cancelledAt,omitempty"`
}

type addressDocument struct {
	Country    string `firestore:"country"`
	Province   string `firestore:"province"`
	City       string `firestore:"city,omitempty"`
	Street     string `firestore:"street"`
	PostalCode string `firestore:"postalCode,omitempty"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
	Subtotal  int64  `firestore:"subtotal"`
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}

	var cancelledAt *time.Time
	if d.CancelledAt != nil {
		ts := d.CancelledAt.UTC()
		cancelledAt = &ts
	}

	return domain.Order{
		ID:            id,
		OrderNumber:   d.OrderNumber,
		UserID:        d.UserID,
		CustomerName:  d.CustomerName,
		CustomerPhone: d.CustomerPhone,
		PhoneDigits:   d.PhoneDigits,
		ShippingAddress: domain.ShippingAddress{
			Country:    d.ShippingAddress.Country,
			Province:   d.ShippingAddress.Province,
			City:       d.ShippingAddress.City,
			Street:     d.ShippingAddress.Street,
			PostalCode: d.ShippingAddress.PostalCode,
		},
		Notes:       d.Notes,
		Status:      domain.OrderStatus(d.Status),
		Items:       items,
		TotalAmount: d.TotalAmount,
		Currency:    d.Currency,
		Guest:       d.Guest,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		CancelledAt: cancelledAt,
	}
}

func orderToDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		}
	}

	return orderDocument{
		OrderNumber:   order.OrderNumber,
		UserID:        order.UserID,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
		PhoneDigits:   order.PhoneDigits,
		ShippingAddress: addressDocument{
			Country:    order.ShippingAddress.Country,
			Province:   order.ShippingAddress.Province,
			City:       order.ShippingAddress.City,
			Street:     order.ShippingAddress.Street,
			PostalCode: order.ShippingAddress.PostalCode,
		},
		Notes:       order.Notes,
		Status:      string(order.Status),
		Items:       items,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		Guest:       order.Guest,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		CancelledAt: order.CancelledAt,
	}
}

// OrderRepository implements repositories.OrderRepository on Firestore. The
// checkout and cancellation flows span the orders, carts, and products
// collections inside a single transaction.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil),
	}, nil
}

// CreateFromCart runs the authenticated checkout transaction. All reads happen
// before any write, as Firestore transactions require: cart, then every
// product, then the order create and cart delete.
func (r *OrderRepository) CreateFromCart(ctx context.Context, req repositories.CheckoutRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(req.Order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	if strings.TrimSpace(req.Order.UserID) == "" {
		return domain.Order{}, errors.New("user id is required")
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var created domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		cartRef := client.Collection(cartsCollection).Doc(req.Order.UserID)
		cartSnap, err := tx.Get(cartRef)
		if status.Code(err) == codes.NotFound {
			return &repositories.CheckoutError{Code: repositories.CheckoutErrorEmptyCart}
		}
		if err != nil {
			return err
		}

		var cart cartDocument
		if err := cartSnap.DataTo(&cart); err != nil {
			return fmt.Errorf("firestore carts decode %s: %w", req.Order.UserID, err)
		}
		if len(cart.Items) == 0 {
			return &repositories.CheckoutError{Code: repositories.CheckoutErrorEmptyCart}
		}

		items := make([]domain.OrderItem, 0, len(cart.Items))
		var total int64
		currency := req.Order.Currency
		for _, line := range cart.Items {
			productRef := client.Collection(productsCollection).Doc(line.ProductID)
			productSnap, err := tx.Get(productRef)
			if status.Code(err) == codes.NotFound {
				return &repositories.CheckoutError{
					Code:      repositories.CheckoutErrorProductNotFound,
					ProductID: line.ProductID,
				}
			}
			if err != nil {
				return err
			}

			var product productDocument
			if err := productSnap.DataTo(&product); err != nil {
				return fmt.Errorf("firestore products decode %s: %w", line.ProductID, err)
			}

			subtotal := product.Price * int64(line.Quantity)
			items = append(items, domain.OrderItem{
				ProductID: line.ProductID,
				Name:      product.Name,
				UnitPrice: product.Price,
				Quantity:  line.Quantity,
				Subtotal:  subtotal,
			})
			total += subtotal
			if currency == "" {
				currency = product.Currency
			}
		}

		order := req.Order
		order.Items = items
		order.TotalAmount = total
		order.Currency = currency
		order.Status = domain.OrderStatusProcessing
		order.Guest = false
		order.CreatedAt = now
		order.UpdatedAt = now

		orderRef := client.Collection(ordersCollection).Doc(order.ID)
		if err := tx.Create(orderRef, orderToDocument(order)); err != nil {
			return err
		}
		if err := tx.Delete(cartRef); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return domain.Order{}, passCheckoutError(err)
	}
	return created, nil
}

// CreateGuest runs the guest checkout transaction. Every line is validated
// against current stock and decremented; one failing line aborts the whole
// transaction, so partial decrements are impossible. Firestore serialises
// conflicting transactions, which keeps two guests from both taking the last
// unit.
func (r *OrderRepository) CreateGuest(ctx context.Context, req repositories.GuestCheckoutRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(req.Order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}
	if len(req.Lines) == 0 {
		return domain.Order{}, &repositories.CheckoutError{Code: repositories.CheckoutErrorEmptyCart}
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var created domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		type resolvedLine struct {
			ref      *firestore.DocumentRef
			product  productDocument
			quantity int
		}

		resolved := make([]resolvedLine, 0, len(req.Lines))
		for _, line := range req.Lines {
			productRef := client.Collection(productsCollection).Doc(line.ProductID)
			productSnap, err := tx.Get(productRef)
			if status.Code(err) == codes.NotFound {
				return &repositories.CheckoutError{
					Code:      repositories.CheckoutErrorProductNotFound,
					ProductID: line.ProductID,
				}
			}
			if err != nil {
				return err
			}

			var product productDocument
			if err := productSnap.DataTo(&product); err != nil {
				return fmt.Errorf("firestore products decode %s: %w", line.ProductID, err)
			}

			if !product.Active {
				return &repositories.CheckoutError{
					Code:        repositories.CheckoutErrorProductInactive,
					ProductID:   line.ProductID,
					ProductName: product.Name,
				}
			}
			if product.Stock < line.Quantity {
				return &repositories.CheckoutError{
					Code:        repositories.CheckoutErrorInsufficientStock,
					ProductID:   line.ProductID,
					ProductName: product.Name,
					Available:   product.Stock,
					Requested:   line.Quantity,
				}
			}

			resolved = append(resolved, resolvedLine{ref: productRef, product: product, quantity: line.Quantity})
		}

		items := make([]domain.OrderItem, 0, len(resolved))
		var total int64
		currency := req.Order.Currency
		for _, line := range resolved {
			if err := tx.Update(line.ref, []firestore.Update{
				{Path: "stock", Value: line.product.Stock - line.quantity},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}

			subtotal := line.product.Price * int64(line.quantity)
			items = append(items, domain.OrderItem{
				ProductID: line.ref.ID,
				Name:      line.product.Name,
				UnitPrice: line.product.Price,
				Quantity:  line.quantity,
				Subtotal:  subtotal,
			})
			total += subtotal
			if currency == "" {
				currency = line.product.Currency
			}
		}

		order := req.Order
		order.Items = items
		order.TotalAmount = total
		order.Currency = currency
		order.Status = domain.OrderStatusProcessing
		order.Guest = true
		order.CreatedAt = now
		order.UpdatedAt = now

		orderRef := client.Collection(ordersCollection).Doc(order.ID)
		if err := tx.Create(orderRef, orderToDocument(order)); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return domain.Order{}, passCheckoutError(err)
	}
	return created, nil
}

// Cancel flips a PROCESSING order to CANCELLED and restores the stock of every
// line item within the same transaction.
func (r *OrderRepository) Cancel(ctx context.Context, req repositories.CancelRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(req.OrderID)
	if id == "" {
		return domain.Order{}, pfirestore.WrapError("orders.cancel", status.Error(codes.NotFound, "order id is required"))
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var cancelled domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		orderRef := client.Collection(ordersCollection).Doc(id)
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}

		var doc orderDocument
		if err := orderSnap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}

		// Owner scoping: a user can only cancel their own orders. The order is
		// reported missing rather than forbidden to avoid leaking existence.
		if req.UserID != "" && doc.UserID != req.UserID {
			return status.Error(codes.NotFound, "order not found")
		}

		current := domain.OrderStatus(doc.Status)
		if !current.Cancellable() {
			return &repositories.OrderStateError{OrderID: id, Current: current}
		}

		type restock struct {
			ref   *firestore.DocumentRef
			stock int
		}
		restocks := make([]restock, 0, len(doc.Items))
		for _, item := range doc.Items {
			productRef := client.Collection(productsCollection).Doc(item.ProductID)
			productSnap, err := tx.Get(productRef)
			if status.Code(err) == codes.NotFound {
				// The product was removed since the order was placed; nothing to restore.
				continue
			}
			if err != nil {
				return err
			}

			var product productDocument
			if err := productSnap.DataTo(&product); err != nil {
				return fmt.Errorf("firestore products decode %s: %w", item.ProductID, err)
			}
			restocks = append(restocks, restock{ref: productRef, stock: product.Stock + item.Quantity})
		}

		for _, rs := range restocks {
			if err := tx.Update(rs.ref, []firestore.Update{
				{Path: "stock", Value: rs.stock},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
		}

		doc.Status = string(domain.OrderStatusCancelled)
		doc.UpdatedAt = now
		doc.CancelledAt = &now
		if err := tx.Set(orderRef, doc); err != nil {
			return err
		}

		cancelled = doc.toDomain(id)
		return nil
	})
	if err != nil {
		var stateErr *repositories.OrderStateError
		if errors.As(err, &stateErr) {
			return domain.Order{}, stateErr
		}
		return domain.Order{}, err
	}
	return cancelled, nil
}

// UpdateStatus rewrites the order status without side effects. CANCELLED is
// terminal: the check runs on the freshly read document inside the transaction
// so a concurrent cancel cannot be overwritten after its stock restore.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, newStatus domain.OrderStatus, now time.Time) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, pfirestore.WrapError("orders.updateStatus", status.Error(codes.NotFound, "order id is required"))
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var updated domain.Order

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		client, err := r.provider.Client(ctx)
		if err != nil {
			return err
		}

		orderRef := client.Collection(ordersCollection).Doc(id)
		orderSnap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}

		var doc orderDocument
		if err := orderSnap.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}

		if current := domain.OrderStatus(doc.Status); current == domain.OrderStatusCancelled {
			return &repositories.OrderStateError{OrderID: id, Current: current}
		}

		doc.Status = string(newStatus)
		doc.UpdatedAt = now
		if err := tx.Set(orderRef, doc); err != nil {
			return err
		}

		updated = doc.toDomain(id)
		return nil
	})
	if err != nil {
		var stateErr *repositories.OrderStateError
		if errors.As(err, &stateErr) {
			return domain.Order{}, stateErr
		}
		return domain.Order{}, err
	}
	return updated, nil
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, pfirestore.WrapError("orders.get", status.Error(codes.NotFound, "order id is required"))
	}

	doc, err := r.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List pages through all orders, optionally filtered by status or an order
// number prefix.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter) (domain.CursorPage[domain.Order], error) {
	return r.list(ctx, filter, "", "")
}

// ListByUser pages through the orders owned by a single user.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, filter domain.OrderFilter) (domain.CursorPage[domain.Order], error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("user id is required")
	}
	return r.list(ctx, filter, uid, "")
}

// ListByPhone pages through orders matching a normalized phone number.
func (r *OrderRepository) ListByPhone(ctx context.Context, phoneDigits string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	digits := strings.TrimSpace(phoneDigits)
	if digits == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("phone digits are required")
	}
	return r.list(ctx, domain.OrderFilter{Pagination: pager}, "", digits)
}

func (r *OrderRepository) list(ctx context.Context, filter domain.OrderFilter, userID, phoneDigits string) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.orders == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrderPageSize
	}
	if pageSize > maxOrderPageSize {
		pageSize = maxOrderPageSize
	}

	var decodedToken *orderPageToken
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tok, err := decodeOrderPageToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		decodedToken = tok
	}

	search := strings.ToUpper(strings.TrimSpace(filter.Search))

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if phoneDigits != "" {
			q = q.Where("phoneDigits", "==", phoneDigits)
		}
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		if search != "" {
			q = q.Where("orderNumber", ">=", search).
				Where("orderNumber", "<", search+"\uf8ff").
				OrderBy("orderNumber", firestore.Asc).
				OrderBy(firestore.DocumentID, firestore.Asc)
			if decodedToken != nil {
				q = q.StartAfter(decodedToken.OrderNumber, decodedToken.ID)
			}
		} else {
			q = q.OrderBy("createdAt", firestore.Desc).
				OrderBy(firestore.DocumentID, firestore.Asc)
			if decodedToken != nil {
				q = q.StartAfter(decodedToken.CreatedAt, decodedToken.ID)
			}
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := encodeOrderPageToken(orderPageToken{
			ID:          last.ID,
			OrderNumber: last.OrderNumber,
			CreatedAt:   last.CreatedAt,
		})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

// passCheckoutError keeps typed checkout errors intact through the transaction wrapper.
func passCheckoutError(err error) error {
	var checkoutErr *repositories.CheckoutError
	if errors.As(err, &checkoutErr) {
		return checkoutErr
	}
	return err
}

type orderPageToken struct {
	ID          string
	OrderNumber string
	CreatedAt   time.Time
}

func encodeOrderPageToken(token orderPageToken) (string, error) {
	return encodePageToken(token)
}

func decodeOrderPageToken(encoded string) (*orderPageToken, error) {
	var token orderPageToken
	if err := decodePageToken(encoded, &token); err != nil {
		return nil, err
	}
	return &token, nil
}
