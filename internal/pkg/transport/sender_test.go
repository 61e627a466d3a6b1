package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pilatesguru/studio-bot/internal/pkg/prompt"
)

func TestSend(t *testing.T) {
	var got pushRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode push: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "push-secret", 2*time.Second)
	p := prompt.New("Напоминание", prompt.Btn("Ок", "rec:ok:1"))
	if err := s.Send(context.Background(), "555", p); err != nil {
		t.Fatalf("send: %v", err)
	}

	if auth != "Bearer push-secret" {
		t.Fatalf("unexpected auth header %q", auth)
	}
	if got.ChatID != "555" || got.Prompt.Text != "Напоминание" {
		t.Fatalf("unexpected push payload: %+v", got)
	}
}

func TestSendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL, "", time.Second)
	if err := s.Send(context.Background(), "555", prompt.New("x")); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestSendNotConfigured(t *testing.T) {
	s := NewHTTPSender("", "", time.Second)
	err := s.Send(context.Background(), "555", prompt.New("x"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
