package payments

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Callback is the normalised outcome of a gateway result webhook.
type Callback struct {
	CheckoutRequestID string
	MerchantRequestID string
	Success           bool
	ReceiptNumber     string
	FailureReason     string
}

type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string          `json:"MerchantRequestID"`
			CheckoutRequestID string          `json:"CheckoutRequestID"`
			ResultCode        json.Number     `json:"ResultCode"`
			ResultDesc        string          `json:"ResultDesc"`
			CallbackMetadata  callbackItemSet `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type callbackItemSet struct {
	Item []struct {
		Name  string `json:"Name"`
		Value any    `json:"Value"`
	} `json:"Item"`
}

// ParseCallback decodes the result webhook the gateway posts after the payer
// responds to an STK prompt.
func ParseCallback(r io.Reader) (Callback, error) {
	var envelope callbackEnvelope
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&envelope); err != nil {
		return Callback{}, fmt.Errorf("%w: malformed callback: %v", ErrInvalidRequest, err)
	}

	stk := envelope.Body.StkCallback
	if strings.TrimSpace(stk.CheckoutRequestID) == "" {
		return Callback{}, fmt.Errorf("%w: callback missing checkout request id", ErrInvalidRequest)
	}

	callback := Callback{
		CheckoutRequestID: stk.CheckoutRequestID,
		MerchantRequestID: stk.MerchantRequestID,
		Success:           stk.ResultCode.String() == "0",
	}

	if callback.Success {
		for _, item := range stk.CallbackMetadata.Item {
			if item.Name == "MpesaReceiptNumber" {
				if receipt, ok := item.Value.(string); ok {
					callback.ReceiptNumber = receipt
				}
			}
		}
	} else {
		callback.FailureReason = stk.ResultDesc
	}

	return callback, nil
}
