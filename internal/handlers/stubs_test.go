package handlers

import (
	"context"
	"net/http"

	"github.com/mitumba-market/api/internal/platform/auth"
	"github.com/mitumba-market/api/internal/services"
)

func authenticated(req *http.Request, uid string, roles ...string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		UID:   uid,
		Roles: roles,
	}))
}

type stubOrderService struct {
	createFromCartFunc    func(ctx context.Context, cmd services.CheckoutCartCommand) (services.Order, error)
	getOrderFunc          func(ctx context.Context, orderID string, actor services.Actor) (services.Order, error)
	listOrdersFunc        func(ctx context.Context, query services.OrderListQuery) ([]services.Order, error)
	confirmFunc           func(ctx context.Context, cmd services.ConfirmOrderCommand) (services.Order, error)
	assignTransporterFunc func(ctx context.Context, cmd services.AssignTransporterCommand) (services.Order, error)
	completeDeliveryFunc  func(ctx context.Context, cmd services.DeliverOrderCommand) (services.Order, error)
	cancelFunc            func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
}

func (s *stubOrderService) CreateFromCart(ctx context.Context, cmd services.CheckoutCartCommand) (services.Order, error) {
	return s.createFromCartFunc(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string, actor services.Actor) (services.Order, error) {
	return s.getOrderFunc(ctx, orderID, actor)
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.OrderListQuery) ([]services.Order, error) {
	return s.listOrdersFunc(ctx, query)
}

func (s *stubOrderService) Confirm(ctx context.Context, cmd services.ConfirmOrderCommand) (services.Order, error) {
	return s.confirmFunc(ctx, cmd)
}

func (s *stubOrderService) AssignTransporter(ctx context.Context, cmd services.AssignTransporterCommand) (services.Order, error) {
	return s.assignTransporterFunc(ctx, cmd)
}

func (s *stubOrderService) CompleteDelivery(ctx context.Context, cmd services.DeliverOrderCommand) (services.Order, error) {
	return s.completeDeliveryFunc(ctx, cmd)
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	return s.cancelFunc(ctx, cmd)
}

type stubCartService struct {
	addItemFunc    func(ctx context.Context, cmd services.AddCartItemCommand) (services.CartItem, error)
	updateItemFunc func(ctx context.Context, cmd services.UpdateCartItemCommand) (services.CartItem, error)
	removeItemFunc func(ctx context.Context, actor services.Actor, itemID string) error
	listItemsFunc  func(ctx context.Context, actor services.Actor) ([]services.CartItem, error)
	clearFunc      func(ctx context.Context, actor services.Actor) error
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.CartItem, error) {
	return s.addItemFunc(ctx, cmd)
}

func (s *stubCartService) UpdateItem(ctx context.Context, cmd services.UpdateCartItemCommand) (services.CartItem, error) {
	return s.updateItemFunc(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, actor services.Actor, itemID string) error {
	return s.removeItemFunc(ctx, actor, itemID)
}

func (s *stubCartService) ListItems(ctx context.Context, actor services.Actor) ([]services.CartItem, error) {
	return s.listItemsFunc(ctx, actor)
}

func (s *stubCartService) Clear(ctx context.Context, actor services.Actor) error {
	return s.clearFunc(ctx, actor)
}

type stubNotificationService struct {
	notifyFunc   func(ctx context.Context, order services.Order)
	listFunc     func(ctx context.Context, actor services.Actor) ([]services.Notification, error)
	markReadFunc func(ctx context.Context, actor services.Actor, notificationID string) error
}

func (s *stubNotificationService) NotifyOrderStatus(ctx context.Context, order services.Order) {
	if s.notifyFunc != nil {
		s.notifyFunc(ctx, order)
	}
}

func (s *stubNotificationService) ListForRecipient(ctx context.Context, actor services.Actor) ([]services.Notification, error) {
	return s.listFunc(ctx, actor)
}

func (s *stubNotificationService) MarkRead(ctx context.Context, actor services.Actor, notificationID string) error {
	return s.markReadFunc(ctx, actor, notificationID)
}

type stubPaymentService struct {
	initiateFunc   func(ctx context.Context, cmd services.InitiatePaymentCommand) (services.Payment, error)
	getPaymentFunc func(ctx context.Context, actor services.Actor, paymentID string) (services.Payment, error)
	callbackFunc   func(ctx context.Context, result services.CallbackResult) error
}

func (s *stubPaymentService) InitiateSTKPush(ctx context.Context, cmd services.InitiatePaymentCommand) (services.Payment, error) {
	return s.initiateFunc(ctx, cmd)
}

func (s *stubPaymentService) GetPayment(ctx context.Context, actor services.Actor, paymentID string) (services.Payment, error) {
	return s.getPaymentFunc(ctx, actor, paymentID)
}

func (s *stubPaymentService) HandleCallback(ctx context.Context, result services.CallbackResult) error {
	return s.callbackFunc(ctx, result)
}
