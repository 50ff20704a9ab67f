package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mitumba-market/api/internal/payments"
	"github.com/mitumba-market/api/internal/platform/auth"
	"github.com/mitumba-market/api/internal/platform/httpx"
	"github.com/mitumba-market/api/internal/services"
)

const maxPaymentBodySize = 4 * 1024

type initiatePaymentRequest struct {
	OrderID string `json:"order_id"`
	Phone   string `json:"phone"`
}

// PaymentHandlers exposes mobile-money collection endpoints.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(authn *auth.Authenticator, svc services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{
		authn:    authn,
		payments: svc,
	}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/stk", h.initiate)
	r.Get("/{paymentID}", h.getPayment)
}

// WebhookRoutes registers the unauthenticated gateway callback endpoint.
// The gateway cannot send bearer tokens; callbacks are matched to payments
// by checkout request ID and replays of settled payments are ignored.
func (h *PaymentHandlers) WebhookRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/mpesa", h.mpesaCallback)
}

func (h *PaymentHandlers) initiate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxPaymentBodySize)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req initiatePaymentRequest
	if len(body) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	payment, err := h.payments.InitiateSTKPush(ctx, services.InitiatePaymentCommand{
		Actor:   actor,
		OrderID: strings.TrimSpace(req.OrderID),
		Phone:   strings.TrimSpace(req.Phone),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusAccepted, paymentResponse{Payment: buildPaymentPayload(payment)})
}

func (h *PaymentHandlers) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(ctx, w, r)
	if !ok {
		return
	}

	paymentID := strings.TrimSpace(chi.URLParam(r, "paymentID"))
	if paymentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment id is required", http.StatusBadRequest))
		return
	}

	payment, err := h.payments.GetPayment(ctx, actor, paymentID)
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, paymentResponse{Payment: buildPaymentPayload(payment)})
}

func (h *PaymentHandlers) mpesaCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	defer func() {
		if r.Body != nil {
			_, _ = io.Copy(io.Discard, r.Body)
			_ = r.Body.Close()
		}
	}()

	callback, err := payments.ParseCallback(r.Body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "malformed callback payload", http.StatusBadRequest))
		return
	}

	err = h.payments.HandleCallback(ctx, services.CallbackResult{
		CheckoutRequestID: callback.CheckoutRequestID,
		Success:           callback.Success,
		ReceiptNumber:     callback.ReceiptNumber,
		FailureReason:     callback.FailureReason,
	})
	if err != nil && !errors.Is(err, services.ErrPaymentNotFound) {
		writePaymentError(ctx, w, err)
		return
	}

	// The gateway expects this acknowledgement shape; anything else causes
	// retries.
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}

func (h *PaymentHandlers) requireActor(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return services.Actor{}, false
	}
	actor, ok := actorFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Actor{}, false
	}
	return actor, true
}

type paymentResponse struct {
	Payment paymentPayload `json:"payment"`
}

type paymentPayload struct {
	ID                string `json:"id"`
	OrderID           string `json:"order_id"`
	Phone             string `json:"phone"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	CheckoutRequestID string `json:"checkout_request_id"`
	ReceiptNumber     string `json:"receipt_number,omitempty"`
	FailureReason     string `json:"failure_reason,omitempty"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at,omitempty"`
	CompletedAt       string `json:"completed_at,omitempty"`
}

func buildPaymentPayload(payment services.Payment) paymentPayload {
	return paymentPayload{
		ID:                payment.ID,
		OrderID:           payment.OrderID,
		Phone:             payment.Phone,
		Amount:            payment.Amount,
		Currency:          strings.ToUpper(payment.Currency),
		Status:            string(payment.Status),
		CheckoutRequestID: payment.CheckoutRequestID,
		ReceiptNumber:     payment.ReceiptNumber,
		FailureReason:     payment.FailureReason,
		CreatedAt:         formatTime(payment.CreatedAt),
		UpdatedAt:         formatTime(payment.UpdatedAt),
		CompletedAt:       formatTime(pointerTime(payment.CompletedAt)),
	}
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_found", "payment not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment gateway unavailable", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("payment_error", "failed to process payment request", http.StatusInternalServerError))
	}
}
