package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitumba-market/api/internal/domain"
	"github.com/mitumba-market/api/internal/repositories"
)

const notificationIDPrefix = "ntf_"

var (
	// ErrNotificationInvalidInput signals the caller provided invalid data.
	ErrNotificationInvalidInput = errors.New("notification: invalid input")
	// ErrNotificationNotFound indicates the notification could not be located.
	ErrNotificationNotFound = errors.New("notification: not found")
)

var statusMessages = map[domain.OrderStatus]string{
	domain.OrderStatusPending:   "Order placed and awaiting a trader",
	domain.OrderStatusConfirmed: "Order confirmed by the trader",
	domain.OrderStatusInTransit: "Order picked up and on the way",
	domain.OrderStatusDelivered: "Order delivered",
	domain.OrderStatusCancelled: "Order cancelled",
}

// NotificationServiceDeps bundles collaborators for the notification service.
type NotificationServiceDeps struct {
	Notifications repositories.NotificationRepository
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type notificationService struct {
	notifications repositories.NotificationRepository
	clock         func() time.Time
	logger        func(context.Context, string, map[string]any)
}

// NewNotificationService wires dependencies into a NotificationService.
func NewNotificationService(deps NotificationServiceDeps) (NotificationService, error) {
	if deps.Notifications == nil {
		return nil, errors.New("notification service: notification repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &notificationService{
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// NotifyOrderStatus writes one record per distinct order participant.
// Failures are logged per recipient and never surface to the caller; a
// missed notification must not roll back an accepted transition.
func (s *notificationService) NotifyOrderStatus(ctx context.Context, order Order) {
	message, ok := statusMessages[order.Status]
	if !ok {
		message = fmt.Sprintf("Order moved to %s", order.Status)
	}

	now := s.clock()
	for _, recipient := range orderRecipients(order) {
		notification := Notification{
			ID:          notificationID(recipient, order.ID, order.Status),
			RecipientID: recipient,
			OrderID:     order.ID,
			OrderTitle:  order.Title,
			Status:      order.Status,
			Message:     message,
			CreatedAt:   now,
		}
		if err := s.notifications.Insert(ctx, notification); err != nil {
			s.logger(ctx, "notification.insert.failed", map[string]any{
				"order":     order.ID,
				"recipient": recipient,
				"status":    string(order.Status),
				"error":     err.Error(),
			})
		}
	}
}

func (s *notificationService) ListForRecipient(ctx context.Context, actor Actor) ([]Notification, error) {
	if strings.TrimSpace(actor.ID) == "" {
		return nil, fmt.Errorf("%w: recipient id is required", ErrNotificationInvalidInput)
	}

	notifications, err := s.notifications.ListByRecipient(ctx, actor.ID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, actor Actor, notificationID string) error {
	notificationID = strings.TrimSpace(notificationID)
	if notificationID == "" {
		return fmt.Errorf("%w: notification id is required", ErrNotificationInvalidInput)
	}

	notification, err := s.notifications.FindByID(ctx, notificationID)
	if err != nil {
		return s.mapRepositoryError(err)
	}
	if notification.RecipientID != actor.ID && !actor.IsAdmin() {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, notificationID)
	}

	if err := s.notifications.MarkRead(ctx, notificationID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *notificationService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return fmt.Errorf("%w: %v", ErrNotificationNotFound, err)
		}
		if repoErr.IsUnavailable() {
			return fmt.Errorf("notification: repository unavailable: %w", err)
		}
	}

	return err
}

// orderRecipients lists the distinct non-nil parties of the order, in
// buyer, trader, transporter precedence.
func orderRecipients(order Order) []string {
	recipients := make([]string, 0, 3)
	seen := make(map[string]bool, 3)

	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		recipients = append(recipients, id)
	}

	add(order.BuyerID)
	add(derefString(order.TraderID))
	add(derefString(order.TransporterID))
	return recipients
}

// notificationID is deterministic per (recipient, order, status) so a
// retried transition overwrites its own record instead of duplicating it.
// The legal state graph never revisits a status, so distinct transitions
// always produce distinct IDs.
func notificationID(recipient, orderID string, status domain.OrderStatus) string {
	sum := sha256.Sum256([]byte(recipient + "|" + orderID + "|" + string(status)))
	return notificationIDPrefix + hex.EncodeToString(sum[:13])
}
