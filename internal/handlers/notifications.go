package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mitumba-market/api/internal/platform/auth"
	"github.com/mitumba-market/api/internal/platform/httpx"
	"github.com/mitumba-market/api/internal/services"
)

// NotificationHandlers exposes the per-recipient notification feed.
type NotificationHandlers struct {
	authn         *auth.Authenticator
	notifications services.NotificationService
}

// NewNotificationHandlers constructs a new NotificationHandlers instance.
func NewNotificationHandlers(authn *auth.Authenticator, notifications services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{
		authn:         authn,
		notifications: notifications,
	}
}

// Routes registers the /notifications endpoints.
func (h *NotificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.list)
	r.Post("/{notificationID}:read", h.markRead)
}

func (h *NotificationHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	notifications, err := h.notifications.ListForRecipient(ctx, actor)
	if err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	payload := notificationListResponse{Items: make([]notificationPayload, 0, len(notifications))}
	for _, notification := range notifications {
		payload.Items = append(payload.Items, buildNotificationPayload(notification))
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *NotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	notificationID := strings.TrimSpace(chi.URLParam(r, "notificationID"))
	if notificationID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "notification id is required", http.StatusBadRequest))
		return
	}

	if err := h.notifications.MarkRead(ctx, actor, notificationID); err != nil {
		writeNotificationError(ctx, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandlers) requireActor(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service unavailable", http.StatusServiceUnavailable))
		return services.Actor{}, false
	}
	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Actor{}, false
	}
	return actor, true
}

type notificationListResponse struct {
	Items []notificationPayload `json:"items"`
}

type notificationPayload struct {
	ID         string `json:"id"`
	OrderID    string `json:"order_id"`
	OrderTitle string `json:"order_title,omitempty"`
	Status     string `json:"status"`
	Message    string `json:"message"`
	Read       bool   `json:"read"`
	CreatedAt  string `json:"created_at"`
}

func buildNotificationPayload(notification services.Notification) notificationPayload {
	return notificationPayload{
		ID:         notification.ID,
		OrderID:    notification.OrderID,
		OrderTitle: notification.OrderTitle,
		Status:     string(notification.Status),
		Message:    notification.Message,
		Read:       notification.Read,
		CreatedAt:  formatTime(notification.CreatedAt),
	}
}

func writeNotificationError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrNotificationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotificationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("notification_error", "failed to process notification request", http.StatusInternalServerError))
	}
}
