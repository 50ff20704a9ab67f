package repositories

import (
	"context"

	"github.com/mitumba-market/api/internal/domain"
)

// RepositoryError categorises persistence failures so the service layer can
// translate them without inspecting driver-specific codes.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderListFilter narrows List results. Party selects orders the user
// participates in according to the party role; Statuses keeps only orders in
// one of the given states. Results are always newest-first.
type OrderListFilter struct {
	Party    *domain.OrderParty
	Statuses []domain.OrderStatus
}

// OrderRepository persists the order aggregate without its items.
//
// Update applies the full document as a field-level update so change-feed
// subscribers observe a modification rather than a delete and re-create.
// When expectedStatus is non-nil the update only commits if the stored
// status still matches; a mismatch surfaces as a conflict RepositoryError.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order, expectedStatus *domain.OrderStatus) error
	Delete(ctx context.Context, orderID string) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// OrderItemRepository persists the captured lines of an order.
type OrderItemRepository interface {
	InsertAll(ctx context.Context, orderID string, items []domain.OrderItem) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	DeleteByOrder(ctx context.Context, orderID string) error
}

// CartRepository persists per-user cart rows.
type CartRepository interface {
	Upsert(ctx context.Context, item domain.CartItem) error
	FindByUserAndProduct(ctx context.Context, userID, productID string) (domain.CartItem, error)
	ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error)
	Remove(ctx context.Context, userID, itemID string) error
	Clear(ctx context.Context, userID string) error
}

// ProductRepository reads catalogue entries. The fulfillment workflow only
// consumes prices and titles; listing management lives elsewhere.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindAll(ctx context.Context, productIDs []string) ([]domain.Product, error)
}

// ProfileRepository reads user profiles for capability checks and
// transporter candidate selection.
type ProfileRepository interface {
	FindByID(ctx context.Context, userID string) (domain.Profile, error)
	ListByRole(ctx context.Context, role domain.UserRole) ([]domain.Profile, error)
}

// NotificationRepository persists fan-out records. Insert with an existing
// ID must overwrite idempotently rather than fail.
type NotificationRepository interface {
	Insert(ctx context.Context, notification domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error)
	FindByID(ctx context.Context, notificationID string) (domain.Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
}

// PaymentRepository persists STK push collection attempts.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	Update(ctx context.Context, payment domain.Payment) error
	FindByID(ctx context.Context, paymentID string) (domain.Payment, error)
	FindByCheckoutRequest(ctx context.Context, checkoutRequestID string) (domain.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
}

// CounterRepository allocates monotonically increasing sequences, used for
// human-friendly order numbers.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// HealthRepository reports storage connectivity for readiness probes.
type HealthRepository interface {
	Ping(ctx context.Context) error
}

// Registry aggregates the repository set handed to the service layer.
type Registry interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Carts() CartRepository
	Products() ProductRepository
	Profiles() ProfileRepository
	Notifications() NotificationRepository
	Payments() PaymentRepository
	Counters() CounterRepository
	Health() HealthRepository

	Close(ctx context.Context) error
}
