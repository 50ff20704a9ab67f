package services

import (
	"context"

	"github.com/mitumba-market/api/internal/domain"
)

// Type aliases keep service signatures concise while the canonical
// definitions live in the domain package.
type (
	Order         = domain.Order
	OrderItem     = domain.OrderItem
	OrderStatus   = domain.OrderStatus
	OrderParty    = domain.OrderParty
	Address       = domain.Address
	CartItem      = domain.CartItem
	Product       = domain.Product
	Profile       = domain.Profile
	Notification  = domain.Notification
	Payment       = domain.Payment
	PaymentStatus = domain.PaymentStatus
	OrderEvent    = domain.OrderEvent
)

// Actor identifies the authenticated caller for capability checks. Role is
// taken from verified token claims, never from request payloads.
type Actor struct {
	ID   string
	Role domain.UserRole
}

// IsAdmin reports whether the actor may bypass ownership checks.
func (a Actor) IsAdmin() bool {
	return a.Role == domain.RoleAdmin
}

// CheckoutCartCommand converts the actor's cart into a pending order.
type CheckoutCartCommand struct {
	Actor           Actor
	ShippingAddress Address
	Description     string
}

// ConfirmOrderCommand lets a trader claim a pending order.
type ConfirmOrderCommand struct {
	OrderID string
	Actor   Actor
}

// AssignTransporterCommand manually routes a confirmed order.
type AssignTransporterCommand struct {
	OrderID       string
	TransporterID string
	Actor         Actor
}

// DeliverOrderCommand completes an in-transit order.
type DeliverOrderCommand struct {
	OrderID string
	Actor   Actor
}

// CancelOrderCommand abandons a non-terminal order.
type CancelOrderCommand struct {
	OrderID        string
	Actor          Actor
	Reason         string
	ExpectedStatus *OrderStatus
}

// OrderListQuery narrows ListOrders results to one participant and an
// optional status set.
type OrderListQuery struct {
	Party    OrderParty
	Statuses []OrderStatus
}

// OrderService owns the fulfillment workflow.
type OrderService interface {
	CreateFromCart(ctx context.Context, cmd CheckoutCartCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, actor Actor) (Order, error)
	ListOrders(ctx context.Context, query OrderListQuery) ([]Order, error)
	Confirm(ctx context.Context, cmd ConfirmOrderCommand) (Order, error)
	AssignTransporter(ctx context.Context, cmd AssignTransporterCommand) (Order, error)
	CompleteDelivery(ctx context.Context, cmd DeliverOrderCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
}

// AddCartItemCommand adds a product to the actor's cart, merging with an
// existing row for the same product.
type AddCartItemCommand struct {
	Actor     Actor
	ProductID string
	Quantity  int
}

// UpdateCartItemCommand replaces the quantity of one cart row.
type UpdateCartItemCommand struct {
	Actor    Actor
	ItemID   string
	Quantity int
}

// CartService manages the per-buyer cart that feeds checkout.
type CartService interface {
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartItem, error)
	UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (CartItem, error)
	RemoveItem(ctx context.Context, actor Actor, itemID string) error
	ListItems(ctx context.Context, actor Actor) ([]CartItem, error)
	Clear(ctx context.Context, actor Actor) error
}

// OrderNotifier receives accepted order mutations for recipient fan-out.
// Implementations must be best-effort and never block the caller's flow.
type OrderNotifier interface {
	NotifyOrderStatus(ctx context.Context, order Order)
}

// NotificationService exposes the per-recipient notification feed.
type NotificationService interface {
	OrderNotifier
	ListForRecipient(ctx context.Context, actor Actor) ([]Notification, error)
	MarkRead(ctx context.Context, actor Actor, notificationID string) error
}

// InitiatePaymentCommand starts an STK push collection for an order.
type InitiatePaymentCommand struct {
	Actor   Actor
	OrderID string
	Phone   string
}

// PaymentService records mobile-money collection attempts. Payment state
// never feeds back into order status.
type PaymentService interface {
	InitiateSTKPush(ctx context.Context, cmd InitiatePaymentCommand) (Payment, error)
	GetPayment(ctx context.Context, actor Actor, paymentID string) (Payment, error)
	HandleCallback(ctx context.Context, result CallbackResult) error
}

// CallbackResult is the normalised outcome extracted from a gateway callback.
type CallbackResult struct {
	CheckoutRequestID string
	Success           bool
	ReceiptNumber     string
	FailureReason     string
}

// OrderEventPublisher publishes order events for downstream consumers such
// as dashboards and analytics.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}
