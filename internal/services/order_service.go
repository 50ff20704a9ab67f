package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mitumba-market/api/internal/domain"
	"github.com/mitumba-market/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"

	orderIDPrefix = "ord_"
	itemIDPrefix  = "itm_"

	defaultCurrency = "KES"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates the order changed underneath the caller.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderForbidden indicates the actor lacks the capability for the operation.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrCartEmpty rejects checkout of a cart with no items.
	ErrCartEmpty = errors.New("order: cart is empty")
)

// orderStateTransitions is the complete legal transition table. Statuses
// absent from the map are terminal. Cancellation is reachable from every
// non-terminal status.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed: {domain.OrderStatusInTransit, domain.OrderStatusCancelled},
	domain.OrderStatusInTransit: {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
}

func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Items       repositories.OrderItemRepository
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	Profiles    repositories.ProfileRepository
	Counters    repositories.CounterRepository
	Notifier    OrderNotifier
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Rand        func(n int) int
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	items      repositories.OrderItemRepository
	carts      repositories.CartRepository
	products   repositories.ProductRepository
	profiles   repositories.ProfileRepository
	counters   repositories.CounterRepository
	notifier   OrderNotifier
	events     OrderEventPublisher
	clock      func() time.Time
	newID      func() string
	rand       func(n int) int
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("order service: order item repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Profiles == nil {
		return nil, errors.New("order service: profile repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		items:      deps.Items,
		carts:      deps.Carts,
		products:   deps.Products,
		profiles:   deps.Profiles,
		counters:   deps.Counters,
		notifier:   deps.Notifier,
		events:     deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		rand:   deps.Rand,
		logger: logger,
	}, nil
}

func (s *orderService) CreateFromCart(ctx context.Context, cmd CheckoutCartCommand) (Order, error) {
	buyerID := strings.TrimSpace(cmd.Actor.ID)
	if buyerID == "" {
		return Order{}, fmt.Errorf("%w: buyer id is required", ErrOrderInvalidInput)
	}

	cartItems, err := s.carts.ListByUser(ctx, buyerID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if len(cartItems) == 0 {
		return Order{}, ErrCartEmpty
	}

	now := s.now()

	order := Order{
		ID:              orderIDPrefix + s.newID(),
		BuyerID:         buyerID,
		Status:          domain.OrderStatusPending,
		Description:     strings.TrimSpace(cmd.Description),
		ShippingAddress: cmd.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	items, err := s.buildOrderItems(ctx, order.ID, cartItems, now)
	if err != nil {
		return Order{}, err
	}

	var amount int64
	for _, item := range items {
		amount += item.LineTotal
	}
	order.Amount = amount
	order.Currency = defaultCurrency
	order.Title = orderTitle(items)

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if err := s.items.InsertAll(ctx, order.ID, items); err != nil {
		// Compensate: the half-written aggregate must not survive.
		if delErr := s.orders.Delete(ctx, order.ID); delErr != nil {
			s.logger(ctx, "order.rollback.failed", map[string]any{
				"order": order.ID,
				"error": delErr.Error(),
			})
		}
		return Order{}, s.mapRepositoryError(err)
	}

	order.Items = items

	// The order stands from here on; a stale cart is recoverable, a lost
	// order is not.
	if err := s.carts.Clear(ctx, buyerID); err != nil {
		s.logger(ctx, "order.cart.clear.failed", map[string]any{
			"order": order.ID,
			"buyer": buyerID,
			"error": err.Error(),
		})
	}

	s.notify(ctx, order)
	s.publishEvent(ctx, orderEventCreated, order, now)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, actor Actor) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !actor.IsAdmin() && !isParticipant(order, actor.ID) {
		// Non-participants must not learn the order exists.
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	items, err := s.items.ListByOrder(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	order.Items = items

	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) ([]Order, error) {
	if strings.TrimSpace(query.Party.UserID) == "" {
		return nil, fmt.Errorf("%w: party user id is required", ErrOrderInvalidInput)
	}

	party := query.Party
	orders, err := s.orders.List(ctx, repositories.OrderListFilter{
		Party:    &party,
		Statuses: query.Statuses,
	})
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return orders, nil
}

func (s *orderService) Confirm(ctx context.Context, cmd ConfirmOrderCommand) (Order, error) {
	if cmd.Actor.Role != domain.RoleTrader && !cmd.Actor.IsAdmin() {
		return Order{}, fmt.Errorf("%w: only traders confirm orders", ErrOrderForbidden)
	}

	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	expected := order.Status
	now := s.now()
	if err := s.applyStatusTransition(&order, domain.OrderStatusConfirmed, now); err != nil {
		return Order{}, err
	}
	order.TraderID = valuePtr(strings.TrimSpace(cmd.Actor.ID))

	if err := s.orders.Update(ctx, order, &expected); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order)
	s.publishEvent(ctx, orderEventStatusChanged, order, now)

	return s.autoAssignTransporter(ctx, order), nil
}

func (s *orderService) AssignTransporter(ctx context.Context, cmd AssignTransporterCommand) (Order, error) {
	transporterID := strings.TrimSpace(cmd.TransporterID)
	if transporterID == "" {
		return Order{}, fmt.Errorf("%w: transporter id is required", ErrOrderInvalidInput)
	}

	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	if !cmd.Actor.IsAdmin() && !matchesPtr(order.TraderID, cmd.Actor.ID) {
		return Order{}, fmt.Errorf("%w: only the claiming trader assigns a transporter", ErrOrderForbidden)
	}

	profile, err := s.profiles.FindByID(ctx, transporterID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if profile.Role != domain.RoleTransporter {
		return Order{}, fmt.Errorf("%w: %s is not a transporter", ErrOrderInvalidInput, transporterID)
	}

	expected := order.Status
	now := s.now()
	if err := s.applyStatusTransition(&order, domain.OrderStatusInTransit, now); err != nil {
		return Order{}, err
	}
	order.TransporterID = valuePtr(transporterID)

	if err := s.orders.Update(ctx, order, &expected); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order)
	s.publishEvent(ctx, orderEventStatusChanged, order, now)

	return order, nil
}

func (s *orderService) CompleteDelivery(ctx context.Context, cmd DeliverOrderCommand) (Order, error) {
	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	if !cmd.Actor.IsAdmin() && !matchesPtr(order.TransporterID, cmd.Actor.ID) {
		return Order{}, fmt.Errorf("%w: only the assigned transporter completes delivery", ErrOrderForbidden)
	}

	expected := order.Status
	now := s.now()
	if err := s.applyStatusTransition(&order, domain.OrderStatusDelivered, now); err != nil {
		return Order{}, err
	}

	if err := s.orders.Update(ctx, order, &expected); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order)
	s.publishEvent(ctx, orderEventStatusChanged, order, now)

	return order, nil
}

func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	order, err := s.findOrder(ctx, cmd.OrderID)
	if err != nil {
		return Order{}, err
	}

	if !cmd.Actor.IsAdmin() &&
		order.BuyerID != cmd.Actor.ID &&
		!matchesPtr(order.TraderID, cmd.Actor.ID) {
		return Order{}, fmt.Errorf("%w: only the buyer or claiming trader cancels", ErrOrderForbidden)
	}

	if cmd.ExpectedStatus != nil && order.Status != *cmd.ExpectedStatus {
		return Order{}, fmt.Errorf("%w: expected status %q but was %q", ErrOrderConflict, *cmd.ExpectedStatus, order.Status)
	}

	expected := order.Status
	now := s.now()
	if err := s.applyStatusTransition(&order, domain.OrderStatusCancelled, now); err != nil {
		return Order{}, err
	}
	order.CancelReason = strings.TrimSpace(cmd.Reason)

	if err := s.orders.Update(ctx, order, &expected); err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order)
	s.publishEvent(ctx, orderEventStatusChanged, order, now)

	return order, nil
}

func (s *orderService) buildOrderItems(ctx context.Context, orderID string, cartItems []CartItem, now time.Time) ([]OrderItem, error) {
	ids := make([]string, 0, len(cartItems))
	for _, item := range cartItems {
		ids = append(ids, item.ProductID)
	}

	products, err := s.products.FindAll(ctx, ids)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	byID := make(map[string]Product, len(products))
	for _, product := range products {
		byID[product.ID] = product
	}

	items := make([]OrderItem, 0, len(cartItems))
	for _, cartItem := range cartItems {
		product, ok := byID[cartItem.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: product %s no longer exists", ErrOrderInvalidInput, cartItem.ProductID)
		}
		if !product.Available {
			return nil, fmt.Errorf("%w: product %s is no longer available", ErrOrderInvalidInput, cartItem.ProductID)
		}
		if cartItem.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for product %s must be positive", ErrOrderInvalidInput, cartItem.ProductID)
		}

		items = append(items, OrderItem{
			ID:          itemIDPrefix + s.newID(),
			OrderID:     orderID,
			ProductID:   product.ID,
			Title:       product.Title,
			Quantity:    cartItem.Quantity,
			PriceAtTime: product.Price,
			LineTotal:   product.Price * int64(cartItem.Quantity),
			CreatedAt:   now,
		})
	}
	return items, nil
}

func (s *orderService) findOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) applyStatusTransition(order *Order, target domain.OrderStatus, now time.Time) error {
	current := order.Status
	if !canTransition(current, target) {
		return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, current, target)
	}

	order.Status = target
	order.UpdatedAt = now

	switch target {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case domain.OrderStatusInTransit:
		order.PickedUpAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
	}

	return nil
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders")
	if err != nil {
		return "", s.mapRepositoryError(err)
	}
	return fmt.Sprintf("MT-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) notify(ctx context.Context, order Order) {
	if s.notifier == nil {
		return
	}
	s.notifier.NotifyOrderStatus(ctx, order)
}

func (s *orderService) publishEvent(ctx context.Context, eventType string, order Order, occurredAt time.Time) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		TraderID:      derefString(order.TraderID),
		TransporterID: derefString(order.TransporterID),
		Status:        order.Status,
		OccurredAt:    occurredAt,
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"status": string(event.Status),
			"error":  err.Error(),
		})
	}
}

func isParticipant(order Order, userID string) bool {
	if userID == "" {
		return false
	}
	return order.BuyerID == userID ||
		matchesPtr(order.TraderID, userID) ||
		matchesPtr(order.TransporterID, userID)
}

func matchesPtr(value *string, userID string) bool {
	return value != nil && userID != "" && *value == userID
}

func orderTitle(items []OrderItem) string {
	if len(items) == 0 {
		return ""
	}
	if len(items) == 1 {
		return items[0].Title
	}
	return fmt.Sprintf("%s and %d more", items[0].Title, len(items)-1)
}

func valuePtr[T any](v T) *T {
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
