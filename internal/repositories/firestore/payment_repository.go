package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

const paymentsCollection = "payments"

// PaymentRepository persists STK push collection attempts.
type PaymentRepository struct {
	base *pfirestore.BaseRepository[paymentDocument]
}

var _ repositories.PaymentRepository = (*PaymentRepository)(nil)

// NewPaymentRepository builds a PaymentRepository.
func NewPaymentRepository(provider *pfirestore.Provider) *PaymentRepository {
	return &PaymentRepository{
		base: pfirestore.NewBaseRepository[paymentDocument](provider, paymentsCollection, nil, nil),
	}
}

type paymentDocument struct {
	OrderID           string     `firestore:"orderId"`
	BuyerID           string     `firestore:"buyerId"`
	Phone             string     `firestore:"phone"`
	Amount            int64      `firestore:"amount"`
	Currency          string     `firestore:"currency"`
	Status            string     `firestore:"status"`
	CheckoutRequestID string     `firestore:"checkoutRequestId"`
	MerchantRequestID string     `firestore:"merchantRequestId,omitempty"`
	ReceiptNumber     string     `firestore:"receiptNumber,omitempty"`
	FailureReason     string     `firestore:"failureReason,omitempty"`
	CreatedAt         time.Time  `firestore:"createdAt"`
	UpdatedAt         time.Time  `firestore:"updatedAt"`
	CompletedAt       *time.Time `firestore:"completedAt,omitempty"`
}

// Insert creates the payment document, failing if the ID already exists.
func (r *PaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	doc, err := r.base.DocumentRef(ctx, payment.ID)
	if err != nil {
		return err
	}
	if _, err := doc.Create(ctx, paymentToDocument(payment)); err != nil {
		return pfirestore.WrapError("payments.insert", err)
	}
	return nil
}

// Update rewrites the payment document.
func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	_, err := r.base.Set(ctx, payment.ID, paymentToDocument(payment))
	return err
}

// FindByID loads one payment.
func (r *PaymentRepository) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	doc, err := r.base.Get(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	return paymentFromDocument(doc.ID, doc.Data), nil
}

// FindByCheckoutRequest locates the payment a gateway callback refers to.
func (r *PaymentRepository) FindByCheckoutRequest(ctx context.Context, checkoutRequestID string) (domain.Payment, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("checkoutRequestId", "==", checkoutRequestID).Limit(1)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if len(docs) == 0 {
		return domain.Payment{}, pfirestore.NewNotFoundError("payments.find",
			fmt.Errorf("no payment for checkout request %s", checkoutRequestID))
	}
	return paymentFromDocument(docs[0].ID, docs[0].Data), nil
}

// ListByOrder returns the order's payment attempts newest-first.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("orderId", "==", orderID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	payments := make([]domain.Payment, 0, len(docs))
	for _, doc := range docs {
		payments = append(payments, paymentFromDocument(doc.ID, doc.Data))
	}
	return payments, nil
}

func paymentToDocument(payment domain.Payment) paymentDocument {
	return paymentDocument{
		OrderID:           payment.OrderID,
		BuyerID:           payment.BuyerID,
		Phone:             payment.Phone,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		Status:            string(payment.Status),
		CheckoutRequestID: payment.CheckoutRequestID,
		MerchantRequestID: payment.MerchantRequestID,
		ReceiptNumber:     payment.ReceiptNumber,
		FailureReason:     payment.FailureReason,
		CreatedAt:         payment.CreatedAt,
		UpdatedAt:         payment.UpdatedAt,
		CompletedAt:       payment.CompletedAt,
	}
}

func paymentFromDocument(id string, doc paymentDocument) domain.Payment {
	return domain.Payment{
		ID:                id,
		OrderID:           doc.OrderID,
		BuyerID:           doc.BuyerID,
		Phone:             doc.Phone,
		Amount:            doc.Amount,
		Currency:          doc.Currency,
		Status:            domain.PaymentStatus(doc.Status),
		CheckoutRequestID: doc.CheckoutRequestID,
		MerchantRequestID: doc.MerchantRequestID,
		ReceiptNumber:     doc.ReceiptNumber,
		FailureReason:     doc.FailureReason,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
		CompletedAt:       doc.CompletedAt,
	}
}
