package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mitumba-market/api/internal/domain"
	"github.com/mitumba-market/api/internal/payments"
	"github.com/mitumba-market/api/internal/repositories"
)

const paymentIDPrefix = "pay_"

var (
	// ErrPaymentInvalidInput signals the caller provided invalid data.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentNotFound indicates the payment could not be located.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrPaymentGateway wraps gateway-side failures.
	ErrPaymentGateway = errors.New("payment: gateway failure")
)

// PaymentServiceDeps bundles collaborators for the payment service.
type PaymentServiceDeps struct {
	Payments    repositories.PaymentRepository
	Orders      repositories.OrderRepository
	Provider    payments.Provider
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	payments repositories.PaymentRepository
	orders   repositories.OrderRepository
	provider payments.Provider
	clock    func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a PaymentService.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("payment service: gateway provider is required")
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

	return &paymentService{
		payments: deps.Payments,
		orders:   deps.Orders,
		provider: deps.Provider,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// InitiateSTKPush prompts the buyer's handset for the order amount. Payment
// state never feeds back into order status; fulfillment continues on its
// own track regardless of the outcome here.
func (s *paymentService) InitiateSTKPush(ctx context.Context, cmd InitiatePaymentCommand) (Payment, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Payment{}, fmt.Errorf("%w: order id is required", ErrPaymentInvalidInput)
	}

	phone, err := payments.NormalizePhone(cmd.Phone)
	if err != nil {
		return Payment{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}
	if order.BuyerID != cmd.Actor.ID && !cmd.Actor.IsAdmin() {
		return Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, orderID)
	}

	resp, err := s.provider.InitiateSTKPush(ctx, payments.STKPushRequest{
		Phone:            phone,
		Amount:           order.Amount,
		AccountReference: order.OrderNumber,
		Description:      "Mitumba order",
	})
	if err != nil {
		if errors.Is(err, payments.ErrInvalidRequest) {
			return Payment{}, fmt.Errorf("%w: %v", ErrPaymentInvalidInput, err)
		}
		return Payment{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	now := s.clock()
	payment := Payment{
		ID:                paymentIDPrefix + s.newID(),
		OrderID:           order.ID,
		BuyerID:           order.BuyerID,
		Phone:             phone,
		Amount:            order.Amount,
		Currency:          order.Currency,
		Status:            domain.PaymentStatusPending,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.payments.Insert(ctx, payment); err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}

	return payment, nil
}

func (s *paymentService) GetPayment(ctx context.Context, actor Actor, paymentID string) (Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return Payment{}, fmt.Errorf("%w: payment id is required", ErrPaymentInvalidInput)
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return Payment{}, s.mapRepositoryError(err)
	}
	if payment.BuyerID != actor.ID && !actor.IsAdmin() {
		return Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
	}

	// Reconcile stale pending rows when the callback never arrived.
	if payment.Status == domain.PaymentStatusPending {
		if result, queryErr := s.provider.QueryStatus(ctx, payment.CheckoutRequestID); queryErr == nil {
			if updated, changed := s.applyQueryResult(payment, result); changed {
				if err := s.payments.Update(ctx, updated); err != nil {
					s.logger(ctx, "payment.reconcile.failed", map[string]any{
						"payment": payment.ID,
						"error":   err.Error(),
					})
					return payment, nil
				}
				return updated, nil
			}
		}
	}

	return payment, nil
}

func (s *paymentService) HandleCallback(ctx context.Context, result CallbackResult) error {
	checkoutRequestID := strings.TrimSpace(result.CheckoutRequestID)
	if checkoutRequestID == "" {
		return fmt.Errorf("%w: checkout request id is required", ErrPaymentInvalidInput)
	}

	payment, err := s.payments.FindByCheckoutRequest(ctx, checkoutRequestID)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	// A settled payment never moves again; replayed callbacks are ignored.
	if payment.Status != domain.PaymentStatusPending {
		return nil
	}

	now := s.clock()
	if result.Success {
		payment.Status = domain.PaymentStatusCompleted
		payment.ReceiptNumber = result.ReceiptNumber
		payment.CompletedAt = &now
	} else {
		payment.Status = domain.PaymentStatusFailed
		payment.FailureReason = result.FailureReason
	}
	payment.UpdatedAt = now

	if err := s.payments.Update(ctx, payment); err != nil {
		return s.mapRepositoryError(err)
	}

	s.logger(ctx, "payment.callback.applied", map[string]any{
		"payment": payment.ID,
		"order":   payment.OrderID,
		"status":  string(payment.Status),
	})
	return nil
}

func (s *paymentService) applyQueryResult(payment Payment, result payments.QueryResult) (Payment, bool) {
	now := s.clock()
	switch result.Status {
	case payments.StatusCompleted:
		payment.Status = domain.PaymentStatusCompleted
		payment.ReceiptNumber = result.ReceiptNumber
		payment.CompletedAt = &now
	case payments.StatusFailed:
		payment.Status = domain.PaymentStatusFailed
		payment.FailureReason = result.FailureReason
	default:
		return payment, false
	}
	payment.UpdatedAt = now
	return payment, true
}

func (s *paymentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("payment: repository unavailable: %w", err)
		}
	}

	return err
}
