package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
)

// ErrNotConfigured is returned when no push URL is set.
var ErrNotConfigured = errors.New("transport not configured")

// HTTPSender pushes prompts to the chat platform's delivery endpoint. The
// webhook flow replies inline; this path covers notifications initiated by
// the service itself.
type HTTPSender struct {
	pushURL    string
	secret     string
	httpClient *http.Client
}

func NewHTTPSender(pushURL, secret string, timeout time.Duration) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSender{
		pushURL:    pushURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	ChatID string        `json:"chat_id"`
	Prompt prompt.Prompt `json:"prompt"`
}

func (s *HTTPSender) Send(ctx context.Context, chatID string, p prompt.Prompt) error {
	if s.pushURL == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(pushRequest{ChatID: chatID, Prompt: p})
	if err != nil {
		return fmt.Errorf("transport marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.pushURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("Authorization", "Bearer "+s.secret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transport send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("transport send: status %d", resp.StatusCode)
	}

	log.Debug().Str("chat_id", chatID).Msg("transport: prompt pushed")
	return nil
}
