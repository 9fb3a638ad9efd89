// Package paystack is a small client for the Paystack transaction API.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgerrors "github.com/jemi-ng/pickup-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.paystack.co"
	defaultTimeout              = 30 * time.Second
	responseBodyReadLimit int64 = 1024

	StatusSuccess = "success"
)

var errSecretKeyRequired = errors.New("paystack secret key is required")

// Client calls the transaction initialize and verify endpoints.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	baseURL    string
	secretKey  string
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout bounds every outbound call. It applies to a copy of the HTTP
// client, whatever order the options come in.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// BreakerSettings controls when the client stops calling a failing gateway.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	OnChange    func(from, to string)
}

// WithBreaker trips after MaxFailures consecutive transport or 5xx failures
// and rejects calls until OpenTimeout elapses.
func WithBreaker(settings BreakerSettings) Option {
	return func(c *Client) {
		if settings.MaxFailures == 0 {
			c.breaker = nil
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "paystack",
			MaxRequests: 1,
			Timeout:     settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.MaxFailures
			},
			IsSuccessful: func(err error) bool {
				var rejected *rejection
				return err == nil || errors.As(err, &rejected)
			},
			OnStateChange: func(_ string, from, to gobreaker.State) {
				if settings.OnChange != nil {
					settings.OnChange(from.String(), to.String())
				}
			},
		})
	}
}

// NewClient builds a Paystack client authenticated with the secret key.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, errSecretKeyRequired
	}

	client := &Client{
		secretKey:  trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.timeout > 0 {
		httpClient := *client.httpClient
		httpClient.Timeout = client.timeout
		client.httpClient = &httpClient
	}
	return client, nil
}

// InitializeRequest is the body of POST /transaction/initialize. Amount is in kobo.
type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// InitializeResult tells the storefront where to send the customer.
type InitializeResult struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult is the gateway's view of a successful transaction.
type VerifyResult struct {
	Reference   string
	Status      string
	AmountMinor int64
	Currency    string
	PaidAt      *time.Time
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Initialize opens a transaction and returns the hosted payment page.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal initialize request")
	}

	body, err := c.call(ctx, http.MethodPost, "transaction/initialize", payload)
	if err != nil {
		return nil, pkgerrors.PaymentGateway(err, "Could not initialize payment")
	}

	var resp envelope[InitializeResult]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.PaymentGateway(err, "Could not initialize payment")
	}
	if !resp.Status {
		return nil, pkgerrors.PaymentGateway(nil, failureMessage(resp.Message, "Payment init failed"))
	}
	return &resp.Data, nil
}

// Verify confirms a transaction settled. Anything other than a successful
// charge is reported as a gateway error.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	body, err := c.call(ctx, http.MethodGet, "transaction/verify/"+url.PathEscape(trimmed), nil)
	if err != nil {
		return nil, pkgerrors.PaymentGateway(err, "Payment verification failed")
	}

	var resp envelope[struct {
		Reference string     `json:"reference"`
		Status    string     `json:"status"`
		Amount    int64      `json:"amount"`
		Currency  string     `json:"currency"`
		PaidAt    *time.Time `json:"paid_at"`
	}]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.PaymentGateway(err, "Payment verification failed")
	}
	if !resp.Status {
		return nil, pkgerrors.PaymentGateway(nil, "Payment not verified")
	}
	if resp.Data.Status != StatusSuccess {
		return nil, pkgerrors.PaymentGateway(nil, fmt.Sprintf("Payment status: %s", resp.Data.Status)).
			WithDetails(map[string]any{"gateway_status": resp.Data.Status})
	}

	result := &VerifyResult{
		Reference:   resp.Data.Reference,
		Status:      resp.Data.Status,
		AmountMinor: resp.Data.Amount,
		Currency:    resp.Data.Currency,
		PaidAt:      resp.Data.PaidAt,
	}
	if result.Reference == "" {
		result.Reference = trimmed
	}
	return result, nil
}

// rejection is a definitive answer from the gateway; it does not count
// against the breaker.
type rejection struct {
	status int
	body   string
}

func (r *rejection) Error() string {
	return fmt.Sprintf("status %d: %s", r.status, r.body)
}

func (c *Client) call(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.breaker == nil {
		return c.do(ctx, method, path, payload)
	}
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, method, path, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("paystack temporarily unavailable: %w", err)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		return nil, &rejection{status: resp.StatusCode, body: strings.TrimSpace(string(msg))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}

func failureMessage(msg, fallback string) string {
	if strings.TrimSpace(msg) == "" {
		return fallback
	}
	return msg
}
