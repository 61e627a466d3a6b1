package httperr

import (
	"context"
	"errors"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
	"testing"
)

func TestClassify(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, "yclients timeout"},
		{"os deadline", os.ErrDeadlineExceeded, "yclients timeout"},
		{"refused", syscall.ECONNREFUSED, "yclients network error"},
		{"dns", &net.DNSError{Err: "no such host"}, "yclients network error"},
		{"wrapped op error", &url.Error{Op: "Get", Err: &net.OpError{Op: "dial"}}, "yclients network error"},
		{"other", errors.New("boom"), "yclients request error"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(ctx, "yclients", c.err)
			if !strings.Contains(got.Error(), c.want) {
				t.Fatalf("Classify(%v) = %q, want %q prefix", c.err, got, c.want)
			}
			if !errors.Is(got, c.err) {
				t.Fatalf("classified error must wrap the cause: %v", got)
			}
		})
	}
}

func TestIsTimeoutFromCanceledContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	if !IsTimeout(ctx, errors.New("request aborted")) {
		t.Fatal("expired request context must classify as timeout")
	}
	if IsTimeout(context.Background(), nil) {
		t.Fatal("nil error is never a timeout")
	}
}
