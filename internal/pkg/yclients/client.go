package yclients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pilatesguru/studio-bot/internal/pkg/httperr"
)

const defaultTimeout = 15 * time.Second

// Config holds YClients API configuration.
type Config struct {
	BaseURL      string
	PartnerToken string
	UserToken    string
	CompanyID    string
	Timeout      time.Duration
	// Location interprets upstream Unix-timestamp dates; the studio's
	// local timezone.
	Location *time.Location
}

// Client represents a YClients HTTP client.
type Client struct {
	cfg  Config
	http *http.Client
}

// envelope is the standard YClients reply wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Message string `json:"message"`
	} `json:"meta"`
	Errors json.RawMessage `json:"errors"`
}

// NewClient creates a new YClients client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
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
		strings.TrimSpace(c.cfg.PartnerToken) != "" &&
		strings.TrimSpace(c.cfg.CompanyID) != ""
}

func (c *Client) companyID() string {
	return strings.TrimSpace(c.cfg.CompanyID)
}

// request performs one API call and unwraps the success envelope. A
// success=false reply comes back as *APIError with the upstream message.
func (c *Client) request(ctx context.Context, method, path string, params url.Values, body interface{}) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqURL := c.cfg.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("yclients request error: %w", err)
		}
		reqBody = bytes.NewBuffer(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("yclients request error: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.yclients.v2+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.PartnerToken+", User "+c.cfg.UserToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httperr.Classify(ctx, "yclients", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yclients response error: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: "malformed response body"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return nil, &APIError{Status: resp.StatusCode, Message: env.errorMessage()}
	}

	return env.Data, nil
}

// errorMessage digs the human-readable error out of the reply: meta.message,
// errors.message, or the raw errors payload.
func (e *envelope) errorMessage() string {
	if e.Meta.Message != "" {
		return e.Meta.Message
	}
	if len(e.Errors) > 0 {
		var obj struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(e.Errors, &obj); err == nil && obj.Message != "" {
			return obj.Message
		}
		return string(e.Errors)
	}
	return "request failed"
}
