package payments

import (
	"context"
	"errors"
)

// Status is the normalised collection outcome reported by a gateway.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	// ErrInvalidRequest signals a malformed push request.
	ErrInvalidRequest = errors.New("payments: invalid request")
	// ErrGatewayUnavailable signals a transport or gateway-side failure.
	ErrGatewayUnavailable = errors.New("payments: gateway unavailable")
	// ErrNotFound signals the gateway does not know the referenced attempt.
	ErrNotFound = errors.New("payments: not found")
)

// STKPushRequest asks the gateway to prompt the payer's handset.
type STKPushRequest struct {
	Phone            string
	Amount           int64
	AccountReference string
	Description      string
}

// STKPushResponse carries the gateway identifiers of an accepted prompt.
type STKPushResponse struct {
	CheckoutRequestID string
	MerchantRequestID string
}

// QueryResult reports the current state of a prompt.
type QueryResult struct {
	Status        Status
	ReceiptNumber string
	FailureReason string
}

// Provider abstracts the mobile-money gateway so services and tests never
// touch gateway wire formats directly.
type Provider interface {
	InitiateSTKPush(ctx context.Context, req STKPushRequest) (STKPushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (QueryResult, error)
}
