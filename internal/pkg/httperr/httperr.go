// Package httperr classifies outbound HTTP request failures for the
// gateway clients, so timeouts and network faults wrap with a readable
// prefix instead of a raw transport error.
package httperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// Classify wraps err with the calling service's name and the failure class.
func Classify(ctx context.Context, service string, err error) error {
	if IsTimeout(ctx, err) {
		return fmt.Errorf("%s timeout: %w", service, err)
	}
	if IsNetwork(err) {
		return fmt.Errorf("%s network error: %w", service, err)
	}
	return fmt.Errorf("%s request error: %w", service, err)
}

// IsTimeout reports whether err (or the request context) is a deadline
// or timeout failure.
func IsTimeout(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsNetwork reports whether err is a connectivity failure (DNS, refused
// or unreachable) rather than an application-level one.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	return false
}
