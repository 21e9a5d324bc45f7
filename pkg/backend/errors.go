package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for common backend responses. Use errors.Is against these;
// the concrete type carried is *APIError.
var (
	// ErrConflict is returned for a unique-constraint violation (409), e.g.
	// inserting a like that already exists. Callers that only care about the
	// end state treat it as success.
	ErrConflict = errors.New("backend: conflict")

	// ErrPermissionDenied is returned when a row-level security policy
	// rejects the read or write (401/403). The policy itself is opaque to
	// the client; the denial is never silently ignored.
	ErrPermissionDenied = errors.New("backend: permission denied")

	// ErrNotFound is returned when the referenced row or RPC does not exist.
	ErrNotFound = errors.New("backend: not found")

	// ErrTimeout is returned when a request exceeds the client's timeout.
	ErrTimeout = errors.New("backend: request timed out")
)

// APIError is the error reported for a non-2xx backend response.
type APIError struct {
	Op      string // "query thoughts", "insert thought_likes", "rpc mark_all_notifications_read"
	Status  int    // HTTP status code
	Code    string // backend error code, if the body carried one
	Message string // backend error message, if the body carried one
}

// Error returns the message with operation context.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend: %s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("backend: %s: status %d", e.Op, e.Status)
}

// Unwrap maps the status onto the matching sentinel so errors.Is works.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrPermissionDenied
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ErrTimeout
	}
	return nil
}

// IsConflict reports whether err is a benign duplicate-row conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsPermissionDenied reports whether err is a row-level security rejection.
func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
