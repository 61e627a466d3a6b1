package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pilatesguru/studio-bot/internal/pkg/httperr"
)

const defaultTimeout = 15 * time.Second

// Payment statuses as reported by the gateway. StatusError is a local
// value for replies we could not interpret.
const (
	StatusSucceeded = "succeeded"
	StatusPending   = "pending"
	StatusCanceled  = "canceled"
	StatusError     = "error"
)

// ErrNotConfigured means the gateway has no shop credentials. Callers fall
// back to a "call the studio to pay" message.
var ErrNotConfigured = errors.New("yookassa is not configured")

// APIError is a non-2xx reply from the payment API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yookassa api error: status=%d code=%s message=%s", e.Status, e.Code, e.Message)
}

// Config holds YooKassa API configuration.
type Config struct {
	BaseURL   string
	ShopID    string
	SecretKey string
	Timeout   time.Duration
}

// Client represents a YooKassa HTTP client.
type Client struct {
	cfg  Config
	http *http.Client
}

// Payment is the subset of the gateway's payment object the flow needs.
type Payment struct {
	ID              string
	Status          string
	ConfirmationURL string
}

// CreatePaymentRequest describes one payment to register.
type CreatePaymentRequest struct {
	Amount      float64
	Description string
	ReturnURL   string
	Metadata    map[string]string
}

type paymentResponse struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

type apiErrorResponse struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// NewClient creates a new YooKassa client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

// Configured reports whether the client carries usable credentials.
func (c *Client) Configured() bool {
	return c != nil &&
		strings.TrimSpace(c.cfg.ShopID) != "" &&
		strings.TrimSpace(c.cfg.SecretKey) != ""
}

// CreatePayment registers a payment and returns its id and the redirect URL
// the client follows to pay. Every call carries a fresh idempotence key, so
// retrying after an ambiguous failure registers a new payment rather than
// silently reusing a stale one.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	payload := map[string]interface{}{
		"amount": map[string]string{
			"value":    fmt.Sprintf("%.2f", req.Amount),
			"currency": "RUB",
		},
		"confirmation": map[string]string{
			"type":       "redirect",
			"return_url": req.ReturnURL,
		},
		"capture":     true,
		"description": req.Description,
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	raw, err := c.request(ctx, http.MethodPost, "/payments", payload)
	if err != nil {
		return nil, err
	}

	var resp paymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("yookassa response error: %w", err)
	}
	if resp.ID == "" || resp.Confirmation.ConfirmationURL == "" {
		return nil, &APIError{Message: "payment reply missing id or confirmation url"}
	}

	return &Payment{
		ID:              resp.ID,
		Status:          resp.Status,
		ConfirmationURL: resp.Confirmation.ConfirmationURL,
	}, nil
}

// CheckPayment returns the payment's current status. Transport and decode
// failures map to StatusError so the flow can tell the client to retry.
func (c *Client) CheckPayment(ctx context.Context, paymentID string) (string, error) {
	raw, err := c.request(ctx, http.MethodGet, "/payments/"+paymentID, nil)
	if err != nil {
		return StatusError, err
	}

	var resp paymentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return StatusError, fmt.Errorf("yookassa response error: %w", err)
	}
	if resp.Status == "" {
		return StatusError, nil
	}
	return resp.Status, nil
}

func (c *Client) request(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("yookassa request error: %w", err)
		}
		reqBody = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("yookassa request error: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.New().String())
	req.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httperr.Classify(ctx, "yookassa", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yookassa response error: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorResponse
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Description == "" {
			return nil, &APIError{Status: resp.StatusCode, Message: "request failed"}
		}
		return nil, &APIError{Status: resp.StatusCode, Code: apiErr.Code, Message: apiErr.Description}
	}

	return raw, nil
}
