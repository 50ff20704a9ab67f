package payments

import (
	"errors"
	"strings"
	"testing"
)

func TestParseCallbackSuccess(t *testing.T) {
	payload := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 2200},
						{"Name": "MpesaReceiptNumber", "Value": "QBC12345"},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`

	callback, err := ParseCallback(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !callback.Success {
		t.Fatal("expected success")
	}
	if callback.CheckoutRequestID != "ws_CO_1" || callback.MerchantRequestID != "mr-1" {
		t.Fatalf("unexpected identifiers %+v", callback)
	}
	if callback.ReceiptNumber != "QBC12345" {
		t.Fatalf("expected receipt from metadata, got %q", callback.ReceiptNumber)
	}
	if callback.FailureReason != "" {
		t.Fatalf("success carries no failure reason, got %q", callback.FailureReason)
	}
}

func TestParseCallbackFailure(t *testing.T) {
	payload := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`

	callback, err := ParseCallback(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if callback.Success {
		t.Fatal("expected failure")
	}
	if callback.FailureReason != "Request cancelled by user" {
		t.Fatalf("unexpected failure reason %q", callback.FailureReason)
	}
	if callback.ReceiptNumber != "" {
		t.Fatal("failed prompts carry no receipt")
	}
}

func TestParseCallbackStringResultCode(t *testing.T) {
	// Some gateway environments quote the result code.
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":"0"}}}`

	callback, err := ParseCallback(strings.NewReader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !callback.Success {
		t.Fatal("expected quoted zero to count as success")
	}
}

func TestParseCallbackRejectsMissingCheckoutID(t *testing.T) {
	payload := `{"Body":{"stkCallback":{"ResultCode":0}}}`

	_, err := ParseCallback(strings.NewReader(payload))
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestParseCallbackRejectsMalformedBody(t *testing.T) {
	_, err := ParseCallback(strings.NewReader("<xml/>"))
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
