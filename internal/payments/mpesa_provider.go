package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	sandboxBaseURL = "https://sandbox.safaricom.co.ke"

	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	timestampLayout = "20060102150405"

	// tokenSlack expires cached tokens early to absorb clock drift.
	tokenSlack = 30 * time.Second
)

// MpesaConfig carries the Daraja credentials and endpoints.
type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// MpesaProvider implements Provider against the Safaricom Daraja API.
type MpesaProvider struct {
	cfg        MpesaConfig
	httpClient *http.Client
	clock      func() time.Time

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// MpesaOption customises MpesaProvider construction.
type MpesaOption func(*MpesaProvider)

// WithHTTPClient injects the HTTP client used for gateway calls.
func WithHTTPClient(client *http.Client) MpesaOption {
	return func(p *MpesaProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithClock injects the time source used for passwords and token expiry.
func WithClock(clock func() time.Time) MpesaOption {
	return func(p *MpesaProvider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewMpesaProvider validates the configuration and builds a provider.
func NewMpesaProvider(cfg MpesaConfig, opts ...MpesaOption) (*MpesaProvider, error) {
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, errors.New("mpesa: consumer credentials are required")
	}
	if strings.TrimSpace(cfg.ShortCode) == "" {
		return nil, errors.New("mpesa: business short code is required")
	}
	if strings.TrimSpace(cfg.Passkey) == "" {
		return nil, errors.New("mpesa: passkey is required")
	}
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, errors.New("mpesa: callback url is required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = sandboxBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("mpesa: invalid base url: %w", err)
	}

	provider := &MpesaProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider, nil
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushReply struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResponseCode      string `json:"ResponseCode"`
	ResponseDesc      string `json:"ResponseDescription"`
	ErrorMessage      string `json:"errorMessage"`
}

// InitiateSTKPush prompts the payer's handset for the given amount.
func (p *MpesaProvider) InitiateSTKPush(ctx context.Context, req STKPushRequest) (STKPushResponse, error) {
	phone, err := NormalizePhone(req.Phone)
	if err != nil {
		return STKPushResponse{}, err
	}
	if req.Amount <= 0 {
		return STKPushResponse{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}

	timestamp := p.clock().Format(timestampLayout)
	payload := stkPushPayload{
		BusinessShortCode: p.cfg.ShortCode,
		Password:          p.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            phone,
		PartyB:            p.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       p.cfg.CallbackURL,
		AccountReference:  truncate(req.AccountReference, 12),
		TransactionDesc:   truncate(req.Description, 13),
	}

	var reply stkPushReply
	if err := p.post(ctx, stkPushPath, payload, &reply); err != nil {
		return STKPushResponse{}, err
	}
	if reply.ResponseCode != "0" {
		reason := reply.ResponseDesc
		if reason == "" {
			reason = reply.ErrorMessage
		}
		return STKPushResponse{}, fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
	}

	return STKPushResponse{
		CheckoutRequestID: reply.CheckoutRequestID,
		MerchantRequestID: reply.MerchantRequestID,
	}, nil
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryReply struct {
	ResponseCode string `json:"ResponseCode"`
	ResultCode   string `json:"ResultCode"`
	ResultDesc   string `json:"ResultDesc"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// QueryStatus asks the gateway for the current state of a prompt.
func (p *MpesaProvider) QueryStatus(ctx context.Context, checkoutRequestID string) (QueryResult, error) {
	checkoutRequestID = strings.TrimSpace(checkoutRequestID)
	if checkoutRequestID == "" {
		return QueryResult{}, fmt.Errorf("%w: checkout request id is required", ErrInvalidRequest)
	}

	timestamp := p.clock().Format(timestampLayout)
	payload := stkQueryPayload{
		BusinessShortCode: p.cfg.ShortCode,
		Password:          p.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	var reply stkQueryReply
	if err := p.post(ctx, stkQueryPath, payload, &reply); err != nil {
		return QueryResult{}, err
	}

	// 500.001.1001 means the prompt is still open on the handset.
	if reply.ErrorCode == "500.001.1001" {
		return QueryResult{Status: StatusPending}, nil
	}
	if reply.ErrorCode != "" {
		return QueryResult{}, fmt.Errorf("%w: %s", ErrNotFound, reply.ErrorMessage)
	}

	switch reply.ResultCode {
	case "0":
		return QueryResult{Status: StatusCompleted}, nil
	default:
		return QueryResult{Status: StatusFailed, FailureReason: reply.ResultDesc}, nil
	}
}

func (p *MpesaProvider) password(timestamp string) string {
	raw := p.cfg.ShortCode + p.cfg.Passkey + timestamp
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func (p *MpesaProvider) post(ctx context.Context, path string, payload any, out any) error {
	token, err := p.token(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: gateway returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: malformed gateway response: %v", ErrGatewayUnavailable, err)
	}
	return nil
}

type oauthReply struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (p *MpesaProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock()
	if p.accessToken != "" && now.Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+oauthPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.SetBasicAuth(p.cfg.ConsumerKey, p.cfg.ConsumerSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token request returned %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var reply oauthReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&reply); err != nil {
		return "", fmt.Errorf("%w: malformed token response: %v", ErrGatewayUnavailable, err)
	}
	if reply.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrGatewayUnavailable)
	}

	ttl := 3600 * time.Second
	if parsed, err := time.ParseDuration(strings.TrimSpace(reply.ExpiresIn) + "s"); err == nil && parsed > 0 {
		ttl = parsed
	}

	p.accessToken = reply.AccessToken
	p.tokenExpiry = now.Add(ttl - tokenSlack)
	return p.accessToken, nil
}

// NormalizePhone converts Kenyan MSISDNs to the 2547XXXXXXXX form the
// gateway requires.
func NormalizePhone(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	switch {
	case strings.HasPrefix(digits, "254") && len(digits) == 12:
		return digits, nil
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "254" + digits[1:], nil
	case (strings.HasPrefix(digits, "7") || strings.HasPrefix(digits, "1")) && len(digits) == 9:
		return "254" + digits, nil
	default:
		return "", fmt.Errorf("%w: unrecognised phone number", ErrInvalidRequest)
	}
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "order"
	}
	if len(value) > limit {
		return value[:limit]
	}
	return value
}
