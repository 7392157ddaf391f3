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
	errOrderRepositoryRequired = errors.New("order service: repository is required")
	errOrderCountersRequired   = errors.New("order service: counter service is required")
	errOrderClockRequired      = errors.New("order service: clock is required")
)

// ErrOrderInvalidInput indicates the caller supplied invalid input.
var ErrOrderInvalidInput = errors.New("order service: invalid input")

// ErrOrderNotFound indicates the requested order does not exist or is not
// visible to the caller.
var ErrOrderNotFound = errors.New("order service: not found")

// ErrOrderConflict indicates the order is in a state that forbids the operation.
var ErrOrderConflict = errors.New("order service: conflict")

// ErrOrderUnavailable indicates the order backend cannot fulfil the request.
var ErrOrderUnavailable = errors.New("order service: unavailable")

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15

	maxOrderNotesLength   = 2000
	maxGuestCheckoutLines = 100
	maxGuestLineQuantity  = 999
	maxCustomerNameLength = 200
)

// OrderServiceDeps wires the order repository, counters, and the event publisher.
type OrderServiceDeps struct {
	Repository      repositories.OrderRepository
	Counters        CounterService
	Publisher       OrderEventPublisher
	Clock           func() time.Time
	IDGenerator     func() string
	DefaultCurrency string
	Logger          func(context.Context, string, map[string]any)
}

type orderService struct {
	repo      repositories.OrderRepository
	counters  CounterService
	publisher OrderEventPublisher
	now       func() time.Time
	newID     func() string
	currency  string
	logger    func(context.Context, string, map[string]any)
}

// NewOrderService constructs an OrderService enforcing dependency validation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Repository == nil {
		return nil, errOrderRepositoryRequired
	}
	if deps.Counters == nil {
		return nil, errOrderCountersRequired
	}
	if deps.Clock == nil {
		return nil, errOrderClockRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return "ord_" + ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		repo:      deps.Repository,
		counters:  deps.Counters,
		publisher: deps.Publisher,
		now:       func() time.Time { return deps.Clock().UTC() },
		newID:     idGen,
		currency:  currency,
		logger:    logger,
	}, nil
}

// Checkout converts the authenticated user's stored cart into a PROCESSING
// order. Prices are snapshotted inside the repository transaction; stock is not
// touched.
func (s *orderService) Checkout(ctx context.Context, cmd CheckoutCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	uid := strings.TrimSpace(cmd.UserID)
	if uid == "" {
		return Order{}, ErrOrderInvalidInput
	}

	header, err := s.buildOrderHeader(cmd.CustomerName, cmd.CustomerPhone, cmd.ShippingAddress, cmd.Notes)
	if err != nil {
		return Order{}, err
	}

	orderNumber, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, ErrOrderUnavailable
	}

	now := s.now()
	header.ID = s.newID()
	header.OrderNumber = orderNumber
	header.UserID = uid
	header.Currency = s.currency

	order, err := s.repo.CreateFromCart(ctx, repositories.CheckoutRequest{Order: header, Now: now})
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:       EventOrderCreated,
		Audience:    AudienceAdmin,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OccurredAt:  now,
		Payload: map[string]any{
			"customerName": order.CustomerName,
			"totalAmount":  order.TotalAmount,
			"currency":     order.Currency,
			"itemCount":    len(order.Items),
		},
	})

	return order, nil
}

// GuestCheckout creates an order from client-supplied items. Every line is
// validated against live stock and decremented atomically.
func (s *orderService) GuestCheckout(ctx context.Context, cmd GuestCheckoutCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	lines, err := mergeGuestLines(cmd.Items)
	if err != nil {
		return Order{}, err
	}

	header, err := s.buildOrderHeader(cmd.CustomerName, cmd.CustomerPhone, cmd.ShippingAddress, cmd.Notes)
	if err != nil {
		return Order{}, err
	}

	orderNumber, err := s.counters.NextOrderNumber(ctx)
	if err != nil {
		return Order{}, ErrOrderUnavailable
	}

	now := s.now()
	header.ID = s.newID()
	header.OrderNumber = orderNumber
	header.Currency = s.currency
	header.Guest = true

	order, err := s.repo.CreateGuest(ctx, repositories.GuestCheckoutRequest{
		Order: header,
		Lines: lines,
		Now:   now,
	})
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	s.publishEvent(ctx, OrderEventMessage{
		Event:       EventOrderCreated,
		Audience:    AudienceAdmin,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OccurredAt:  now,
		Payload: map[string]any{
			"customerName": order.CustomerName,
			"totalAmount":  order.TotalAmount,
			"currency":     order.Currency,
			"itemCount":    len(order.Items),
			"guest":        true,
		},
	})

	return order, nil
}

// Cancel cancels a PROCESSING order and restores the stock of every line.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	now := s.now()
	order, err := s.repo.Cancel(ctx, repositories.CancelRequest{
		OrderID: orderID,
		UserID:  strings.TrimSpace(cmd.UserID),
		Now:     now,
	})
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	event := OrderEventMessage{
		Event:       EventOrderCancelled,
		Audience:    AudienceAdmin,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OccurredAt:  now,
		Payload:     map[string]any{"status": string(order.Status)},
	}
	if order.UserID != "" {
		event.Audience = AudienceUser
		event.UserID = order.UserID
	}
	s.publishEvent(ctx, event)

	return order, nil
}

// TransitionStatus moves an order through its lifecycle. Cancellation is
// excluded here because it has stock side effects; it goes through Cancel.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	target, ok := domain.ParseOrderStatus(string(cmd.Status))
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	if target == domain.OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: cancellation must go through the cancel flow", ErrOrderInvalidInput)
	}

	current, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if current.Status == domain.OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: order is cancelled", ErrOrderConflict)
	}
	if current.Status == target {
		return current, nil
	}

	now := s.now()
	order, err := s.repo.UpdateStatus(ctx, orderID, target, now)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}

	if order.UserID != "" {
		s.publishEvent(ctx, OrderEventMessage{
			Event:       EventOrderStatusChanged,
			Audience:    AudienceUser,
			UserID:      order.UserID,
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			OccurredAt:  now,
			Payload: map[string]any{
				"status":   string(order.Status),
				"previous": string(current.Status),
			},
		})
	}

	return order, nil
}

// GetOrder loads a single order, scoped to the owner when opts.UserID is set.
func (s *orderService) GetOrder(ctx context.Context, orderID string, opts OrderReadOptions) (Order, error) {
	if s == nil || s.repo == nil {
		return Order{}, ErrOrderUnavailable
	}

	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Order{}, s.translateRepoError(err)
	}
	if uid := strings.TrimSpace(opts.UserID); uid != "" && order.UserID != uid {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders pages through every order. Staff only.
func (s *orderService) ListOrders(ctx context.Context, filter OrderFilter) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}

	page, err := s.repo.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

// ListMyOrders pages through the caller's own orders.
func (s *orderService) ListMyOrders(ctx context.Context, userID string, filter OrderFilter) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}

	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[Order]{}, ErrOrderInvalidInput
	}

	page, err := s.repo.ListByUser(ctx, uid, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

// TrackByPhone lists orders placed with the given phone number. The phone is
// matched on its digits only, so formatting differences do not matter.
func (s *orderService) TrackByPhone(ctx context.Context, phone string, pager Pagination) (domain.CursorPage[Order], error) {
	if s == nil || s.repo == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}

	digits := domain.NormalizePhone(phone)
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: phone must contain %d to %d digits", ErrOrderInvalidInput, minPhoneDigits, maxPhoneDigits)
	}

	page, err := s.repo.ListByPhone(ctx, digits, pager)
	if err != nil {
		return domain.CursorPage[Order]{}, s.translateRepoError(err)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

// buildOrderHeader validates and normalises the customer-facing order fields.
func (s *orderService) buildOrderHeader(name, phone string, address ShippingAddress, notes string) (domain.Order, error) {
	customerName := strings.TrimSpace(name)
	if customerName == "" {
		return domain.Order{}, fmt.Errorf("%w: customer name is required", ErrOrderInvalidInput)
	}
	if len(customerName) > maxCustomerNameLength {
		return domain.Order{}, fmt.Errorf("%w: customer name must be %d characters or fewer", ErrOrderInvalidInput, maxCustomerNameLength)
	}

	customerPhone := strings.TrimSpace(phone)
	digits := domain.NormalizePhone(customerPhone)
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return domain.Order{}, fmt.Errorf("%w: phone must contain %d to %d digits", ErrOrderInvalidInput, minPhoneDigits, maxPhoneDigits)
	}

	shipping := domain.ShippingAddress{
		Country:    strings.TrimSpace(address.Country),
		Province:   strings.TrimSpace(address.Province),
		City:       strings.TrimSpace(address.City),
		Street:     strings.TrimSpace(address.Street),
		PostalCode: strings.TrimSpace(address.PostalCode),
	}
	if shipping.Country == "" {
		return domain.Order{}, fmt.Errorf("%w: shipping country is required", ErrOrderInvalidInput)
	}
	if shipping.Province == "" {
		return domain.Order{}, fmt.Errorf("%w: shipping province is required", ErrOrderInvalidInput)
	}
	if shipping.Street == "" {
		return domain.Order{}, fmt.Errorf("%w: shipping street is required", ErrOrderInvalidInput)
	}

	trimmedNotes := strings.TrimSpace(notes)
	if len(trimmedNotes) > maxOrderNotesLength {
		return domain.Order{}, fmt.Errorf("%w: notes must be %d characters or fewer", ErrOrderInvalidInput, maxOrderNotesLength)
	}

	return domain.Order{
		CustomerName:    customerName,
		CustomerPhone:   customerPhone,
		PhoneDigits:     digits,
		ShippingAddress: shipping,
		Notes:           trimmedNotes,
	}, nil
}

// mergeGuestLines validates the requested lines and collapses duplicate
// product references into one line each.
func mergeGuestLines(items []GuestCheckoutItem) ([]repositories.GuestLine, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	if len(items) > maxGuestCheckoutLines {
		return nil, fmt.Errorf("%w: at most %d items are allowed", ErrOrderInvalidInput, maxGuestCheckoutLines)
	}

	index := make(map[string]int, len(items))
	lines := make([]repositories.GuestLine, 0, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: product_id is required on every item", ErrOrderInvalidInput)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be greater than zero", ErrOrderInvalidInput)
		}
		if item.Quantity > maxGuestLineQuantity {
			return nil, fmt.Errorf("%w: quantity must be %d or fewer", ErrOrderInvalidInput, maxGuestLineQuantity)
		}

		if i, ok := index[productID]; ok {
			lines[i].Quantity += item.Quantity
			if lines[i].Quantity > maxGuestLineQuantity {
				return nil, fmt.Errorf("%w: quantity must be %d or fewer", ErrOrderInvalidInput, maxGuestLineQuantity)
			}
			continue
		}
		index[productID] = len(lines)
		lines = append(lines, repositories.GuestLine{ProductID: productID, Quantity: item.Quantity})
	}
	return lines, nil
}

// publishEvent delivers the event on a best-effort basis. Publish failures are
// logged and never fail the order operation.
func (s *orderService) publishEvent(ctx context.Context, message OrderEventMessage) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.PublishOrderEvent(ctx, message); err != nil {
		s.logger(ctx, "order.event_publish_failed", map[string]any{
			"event":   message.Event,
			"orderID": message.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var checkoutErr *repositories.CheckoutError
	if errors.As(err, &checkoutErr) {
		return checkoutErr
	}
	var stateErr *repositories.OrderStateError
	if errors.As(err, &stateErr) {
		return stateErr
	}
	switch {
	case isRepoNotFound(err):
		return ErrOrderNotFound
	case isRepoConflict(err):
		return ErrOrderConflict
	default:
		return ErrOrderUnavailable
	}
}
