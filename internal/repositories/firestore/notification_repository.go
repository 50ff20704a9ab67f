package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/mitumba-market/api/internal/domain"
	pfirestore "github.com/mitumba-market/api/internal/platform/firestore"
	"github.com/mitumba-market/api/internal/repositories"
)

const notificationsCollection = "notifications"

// NotificationRepository persists fan-out records.
type NotificationRepository struct {
	base *pfirestore.BaseRepository[notificationDocument]
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository builds a NotificationRepository.
func NewNotificationRepository(provider *pfirestore.Provider) *NotificationRepository {
	return &NotificationRepository{
		base: pfirestore.NewBaseRepository[notificationDocument](provider, notificationsCollection, nil, nil),
	}
}

type notificationDocument struct {
	RecipientID string    `firestore:"recipientId"`
	OrderID     string    `firestore:"orderId"`
	OrderTitle  string    `firestore:"orderTitle"`
	Status      string    `firestore:"status"`
	Message     string    `firestore:"message"`
	Read        bool      `firestore:"read"`
	CreatedAt   time.Time `firestore:"createdAt"`
}

// Insert upserts the record under its deterministic ID, making retried
// fan-outs idempotent.
func (r *NotificationRepository) Insert(ctx context.Context, notification domain.Notification) error {
	_, err := r.base.Set(ctx, notification.ID, notificationToDocument(notification))
	return err
}

// ListByRecipient returns the recipient's feed newest-first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string) ([]domain.Notification, error) {
	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("recipientId", "==", recipientID).OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(docs))
	for _, doc := range docs {
		notifications = append(notifications, notificationFromDocument(doc.ID, doc.Data))
	}
	return notifications, nil
}

// FindByID loads one record.
func (r *NotificationRepository) FindByID(ctx context.Context, notificationID string) (domain.Notification, error) {
	doc, err := r.base.Get(ctx, notificationID)
	if err != nil {
		return domain.Notification{}, err
	}
	return notificationFromDocument(doc.ID, doc.Data), nil
}

// MarkRead flips the read flag.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID string) error {
	_, err := r.base.Update(ctx, notificationID, []firestore.Update{
		{Path: "read", Value: true},
	})
	return err
}

func notificationToDocument(notification domain.Notification) notificationDocument {
	return notificationDocument{
		RecipientID: notification.RecipientID,
		OrderID:     notification.OrderID,
		OrderTitle:  notification.OrderTitle,
		Status:      string(notification.Status),
		Message:     notification.Message,
		Read:        notification.Read,
		CreatedAt:   notification.CreatedAt,
	}
}

func notificationFromDocument(id string, doc notificationDocument) domain.Notification {
	return domain.Notification{
		ID:          id,
		RecipientID: doc.RecipientID,
		OrderID:     doc.OrderID,
		OrderTitle:  doc.OrderTitle,
		Status:      domain.OrderStatus(doc.Status),
		Message:     doc.Message,
		Read:        doc.Read,
		CreatedAt:   doc.CreatedAt,
	}
}
