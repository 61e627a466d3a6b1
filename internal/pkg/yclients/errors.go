package yclients

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means the integration has no credentials. Callers degrade
// to a fixed "call the studio" message instead of showing the raw error.
var ErrNotConfigured = errors.New("yclients is not configured")

// APIError is a non-2xx or success=false reply from the scheduling API.
// Message carries the upstream error text for operator-facing output.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("yclients api error: status=%d message=%s", e.Status, e.Message)
	}
	return fmt.Sprintf("yclients api error: %s", e.Message)
}
