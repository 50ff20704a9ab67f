package services

import (
	"context"
	"errors"

	"github.com/mitumba-market/api/internal/domain"
	"github.com/mitumba-market/api/internal/payments"
	"github.com/mitumba-market/api/internal/repositories"
)

type repositoryErrorStub struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *repositoryErrorStub) Error() string {
	switch {
	case e.notFound:
		return "stub: not found"
	case e.conflict:
		return "stub: conflict"
	case e.unavailable:
		return "stub: unavailable"
	}
	return "stub: repository error"
}

func (e *repositoryErrorStub) IsNotFound() bool    { return e.notFound }
func (e *repositoryErrorStub) IsConflict() bool    { return e.conflict }
func (e *repositoryErrorStub) IsUnavailable() bool { return e.unavailable }

type stubOrderRepository struct {
	insertFunc func(ctx context.Context, order domain.Order) error
	updateFunc func(ctx context.Context, order domain.Order, expected *domain.OrderStatus) error
	deleteFunc func(ctx context.Context, orderID string) error
	findFunc   func(ctx context.Context, orderID string) (domain.Order, error)
	listFunc   func(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error)
}

func (s *stubOrderRepository) Insert(ctx context.Context, order domain.Order) error {
	return s.insertFunc(ctx, order)
}

func (s *stubOrderRepository) Update(ctx context.Context, order domain.Order, expected *domain.OrderStatus) error {
	return s.updateFunc(ctx, order, expected)
}

func (s *stubOrderRepository) Delete(ctx context.Context, orderID string) error {
	return s.deleteFunc(ctx, orderID)
}

func (s *stubOrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	return s.findFunc(ctx, orderID)
}

func (s *stubOrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	return s.listFunc(ctx, filter)
}

type stubOrderItemRepository struct {
	insertAllFunc     func(ctx context.Context, orderID string, items []domain.OrderItem) error
	listByOrderFunc   func(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	deleteByOrderFunc func(ctx context.Context, orderID string) error
}

func (s *stubOrderItemRepository) InsertAll(ctx context.Context, orderID string, items []domain.OrderItem) error {
	return s.insertAllFunc(ctx, orderID, items)
}

func (s *stubOrderItemRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	if s.listByOrderFunc == nil {
		return nil, nil
	}
	return s.listByOrderFunc(ctx, orderID)
}

func (s *stubOrderItemRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	return s.deleteByOrderFunc(ctx, orderID)
}

type stubCartRepository struct {
	upsertFunc  func(ctx context.Context, item domain.CartItem) error
	findFunc    func(ctx context.Context, userID, productID string) (domain.CartItem, error)
	listFunc    func(ctx context.Context, userID string) ([]domain.CartItem, error)
	removeFunc  func(ctx context.Context, userID, itemID string) error
	clearFunc   func(ctx context.Context, userID string) error
	clearCalled int
}

func (s *stubCartRepository) Upsert(ctx context.Context, item domain.CartItem) error {
	return s.upsertFunc(ctx, item)
}

func (s *stubCartRepository) FindByUserAndProduct(ctx context.Context, userID, productID string) (domain.CartItem, error) {
	return s.findFunc(ctx, userID, productID)
}

func (s *stubCartRepository) ListByUser(ctx context.Context, userID string) ([]domain.CartItem, error) {
	return s.listFunc(ctx, userID)
}

func (s *stubCartRepository) Remove(ctx context.Context, userID, itemID string) error {
	return s.removeFunc(ctx, userID, itemID)
}

func (s *stubCartRepository) Clear(ctx context.Context, userID string) error {
	s.clearCalled++
	if s.clearFunc == nil {
		return nil
	}
	return s.clearFunc(ctx, userID)
}

type stubProductRepository struct {
	findFunc    func(ctx context.Context, productID string) (domain.Product, error)
	findAllFunc func(ctx context.Context, productIDs []string) ([]domain.Product, error)
}

func (s *stubProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	return s.findFunc(ctx, productID)
}

func (s *stubProductRepository) FindAll(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	return s.findAllFunc(ctx, productIDs)
}

type stubProfileRepository struct {
	findFunc       func(ctx context.Context, userID string) (domain.Profile, error)
	listByRoleFunc func(ctx context.Context, role domain.UserRole) ([]domain.Profile, error)
}

func (s *stubProfileRepository) FindByID(ctx context.Context, userID string) (domain.Profile, error) {
	return s.findFunc(ctx, userID)
}

func (s *stubProfileRepository) ListByRole(ctx context.Context, role domain.UserRole) ([]domain.Profile, error) {
	return s.listByRoleFunc(ctx, role)
}

type stubNotificationRepository struct {
	insertFunc   func(ctx context.Context, notification domain.Notification) error
	listFunc     func(ctx context.Context, recipientID string) ([]domain.Notification, error)
	findFunc     func(ctx context.Context, notificationID string) (domain.Notification, error)
	markReadFunc func(ctx context.Context, notificationID string) error
}

func (s *stubNotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	return s.insertFunc(ctx, notification)
}

func (s *stubNotificationRepository) ListByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	return s.listFunc(ctx, recipientID)
}

func (s *stubNotificationRepository) FindByID(ctx context.Context, notificationID string) (domain.Notification, error) {
	return s.findFunc(ctx, notificationID)
}

func (s *stubNotificationRepository) MarkRead(ctx context.Context, notificationID string) error {
	return s.markReadFunc(ctx, notificationID)
}

type stubPaymentRepository struct {
	insertFunc         func(ctx context.Context, payment domain.Payment) error
	updateFunc         func(ctx context.Context, payment domain.Payment) error
	findFunc           func(ctx context.Context, paymentID string) (domain.Payment, error)
	findByCheckoutFunc func(ctx context.Context, checkoutRequestID string) (domain.Payment, error)
	listByOrderFunc    func(ctx context.Context, orderID string) ([]domain.Payment, error)
}

func (s *stubPaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	return s.insertFunc(ctx, payment)
}

func (s *stubPaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	return s.updateFunc(ctx, payment)
}

func (s *stubPaymentRepository) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	return s.findFunc(ctx, paymentID)
}

func (s *stubPaymentRepository) FindByCheckoutRequest(ctx context.Context, checkoutRequestID string) (domain.Payment, error) {
	return s.findByCheckoutFunc(ctx, checkoutRequestID)
}

func (s *stubPaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	return s.listByOrderFunc(ctx, orderID)
}

type stubCounterRepository struct {
	nextFunc func(ctx context.Context, name string) (int64, error)
}

func (s *stubCounterRepository) Next(ctx context.Context, name string) (int64, error) {
	if s.nextFunc == nil {
		return 1, nil
	}
	return s.nextFunc(ctx, name)
}

type stubOrderNotifier struct {
	notified []domain.Order
}

func (s *stubOrderNotifier) NotifyOrderStatus(_ context.Context, order domain.Order) {
	s.notified = append(s.notified, order)
}

type stubEventPublisher struct {
	events []domain.OrderEvent
	err    error
}

func (s *stubEventPublisher) PublishOrderEvent(_ context.Context, event domain.OrderEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type stubPaymentProvider struct {
	initiateFunc func(ctx context.Context, req payments.STKPushRequest) (payments.STKPushResponse, error)
	queryFunc    func(ctx context.Context, checkoutRequestID string) (payments.QueryResult, error)
}

func (s *stubPaymentProvider) InitiateSTKPush(ctx context.Context, req payments.STKPushRequest) (payments.STKPushResponse, error) {
	if s.initiateFunc == nil {
		return payments.STKPushResponse{}, errors.New("stub: initiate not configured")
	}
	return s.initiateFunc(ctx, req)
}

func (s *stubPaymentProvider) QueryStatus(ctx context.Context, checkoutRequestID string) (payments.QueryResult, error) {
	if s.queryFunc == nil {
		return payments.QueryResult{}, errors.New("stub: query not configured")
	}
	return s.queryFunc(ctx, checkoutRequestID)
}
