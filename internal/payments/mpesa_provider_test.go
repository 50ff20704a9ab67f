package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, baseURL string, clock func() time.Time) *MpesaProvider {
	t.Helper()
	opts := []MpesaOption{WithHTTPClient(&http.Client{Timeout: time.Second})}
	if clock != nil {
		opts = append(opts, WithClock(clock))
	}
	provider, err := NewMpesaProvider(MpesaConfig{
		BaseURL:        baseURL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/webhooks/mpesa",
	}, opts...)
	if err != nil {
		t.Fatalf("unexpected error constructing provider: %v", err)
	}
	return provider
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"254712345678", "254712345678", true},
		{"0712345678", "254712345678", true},
		{"712345678", "254712345678", true},
		{"0110123456", "254110123456", true},
		{"+254 712 345 678", "254712345678", true},
		{"0712-345-678", "254712345678", true},
		{"12345", "", false},
		{"", "", false},
		{"44712345678", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.ok {
			if err != nil {
				t.Errorf("NormalizePhone(%q) unexpected error: %v", tc.in, err)
				continue
			}
			if got != tc.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("NormalizePhone(%q) expected ErrInvalidRequest, got %v", tc.in, err)
		}
	}
}

func TestMpesaProviderInitiateSTKPush(t *testing.T) {
	now := time.Date(2026, 5, 1, 14, 30, 0, 0, time.UTC)
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + "20260501143000"))

	tokenCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			tokenCalls++
			user, pass, ok := r.BasicAuth()
			if !ok || user != "key" || pass != "secret" {
				t.Errorf("unexpected basic auth %q/%q", user, pass)
			}
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
		case "/mpesa/stkpush/v1/processrequest":
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Errorf("unexpected authorization header %q", got)
			}
			var payload stkPushPayload
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode payload: %v", err)
			}
			if payload.Password != wantPassword {
				t.Errorf("unexpected password %q", payload.Password)
			}
			if payload.Timestamp != "20260501143000" {
				t.Errorf("unexpected timestamp %q", payload.Timestamp)
			}
			if payload.PhoneNumber != "254712345678" || payload.PartyA != "254712345678" {
				t.Errorf("unexpected phone %q", payload.PhoneNumber)
			}
			if payload.Amount != 2200 {
				t.Errorf("unexpected amount %d", payload.Amount)
			}
			if payload.AccountReference != "MT-2026-0000" {
				t.Errorf("expected reference truncated to 12 chars, got %q", payload.AccountReference)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID":   "mr-1",
				"CheckoutRequestID":   "ws_CO_1",
				"ResponseCode":        "0",
				"ResponseDescription": "Success",
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, func() time.Time { return now })

	resp, err := provider.InitiateSTKPush(context.Background(), STKPushRequest{
		Phone:            "0712345678",
		Amount:           2200,
		AccountReference: "MT-2026-000042",
		Description:      "Mitumba order",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_1" || resp.MerchantRequestID != "mr-1" {
		t.Fatalf("unexpected response %+v", resp)
	}

	// A second call inside the token lifetime reuses the cached token.
	if _, err := provider.InitiateSTKPush(context.Background(), STKPushRequest{
		Phone:  "0712345678",
		Amount: 100,
	}); err != nil {
		t.Fatalf("unexpected error on second push: %v", err)
	}
	if tokenCalls != 1 {
		t.Fatalf("expected one token request, got %d", tokenCalls)
	}
}

func TestMpesaProviderInitiateSTKPushRejectsGatewayDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "1",
			"ResponseDescription": "Insufficient balance",
		})
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, nil)

	_, err := provider.InitiateSTKPush(context.Background(), STKPushRequest{
		Phone:  "0712345678",
		Amount: 100,
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestMpesaProviderInitiateSTKPushValidatesAmount(t *testing.T) {
	provider := newTestProvider(t, "https://unused.invalid", nil)

	_, err := provider.InitiateSTKPush(context.Background(), STKPushRequest{
		Phone:  "0712345678",
		Amount: 0,
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestMpesaProviderInitiateSTKPushGatewayDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, nil)

	_, err := provider.InitiateSTKPush(context.Background(), STKPushRequest{
		Phone:  "0712345678",
		Amount: 100,
	})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestMpesaProviderQueryStatus(t *testing.T) {
	replies := map[string]map[string]string{
		"done": {"ResponseCode": "0", "ResultCode": "0", "ResultDesc": "Processed"},
		"lost": {"ResponseCode": "0", "ResultCode": "1032", "ResultDesc": "Request cancelled by user"},
		"open": {"errorCode": "500.001.1001", "errorMessage": "The transaction is being processed"},
	}

	var key string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1", "expires_in": "3599"})
			return
		}
		json.NewEncoder(w).Encode(replies[key])
	}))
	defer server.Close()

	provider := newTestProvider(t, server.URL, nil)
	ctx := context.Background()

	key = "done"
	result, err := provider.QueryStatus(ctx, "ws_CO_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", result.Status)
	}

	key = "lost"
	result, err = provider.QueryStatus(ctx, "ws_CO_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFailed || result.FailureReason != "Request cancelled by user" {
		t.Fatalf("unexpected result %+v", result)
	}

	key = "open"
	result, err = provider.QueryStatus(ctx, "ws_CO_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusPending {
		t.Fatalf("expected pending while the prompt is open, got %q", result.Status)
	}
}

func TestNewMpesaProviderValidatesConfig(t *testing.T) {
	_, err := NewMpesaProvider(MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		CallbackURL:    "https://example.com/webhooks/mpesa",
	})
	if err == nil {
		t.Fatal("expected error for missing passkey")
	}
}
