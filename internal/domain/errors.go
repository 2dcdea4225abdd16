package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across layers. Components wrap them with context
// (fmt.Errorf("...: %w", ErrX)) and callers test with errors.Is.
var (
	ErrValidation    = errors.New("invalid input")
	ErrPermission    = errors.New("permission denied")
	ErrNetwork       = errors.New("network error")
	ErrAPI           = errors.New("api error")
	ErrParse         = errors.New("malformed response")
	ErrDecode        = errors.New("undecodable audio")
	ErrPlayback      = errors.New("playback error")
	ErrIO            = errors.New("io error")
	ErrInvalidState  = errors.New("invalid state")
	ErrNotFound      = errors.New("not found")
	ErrCancelled     = errors.New("cancelled by user")
	ErrSessionClosed = errors.New("session is closed")

	// ErrPrecondition is returned when a generation is requested without
	// text or without a selected voice. It is a validation error.
	ErrPrecondition = fmt.Errorf("precondition failed: %w", ErrValidation)

	// ErrBusy is returned when an operation is attempted while another one
	// is still in flight. It is an invalid-state error.
	ErrBusy = fmt.Errorf("busy: %w", ErrInvalidState)
)

// APIError reports a non-success HTTP status from the remote service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error %d", e.StatusCode)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Body)
}

// Is makes errors.Is(err, ErrAPI) match any APIError.
func (e *APIError) Is(target error) bool { return target == ErrAPI }

// StatusCode returns the HTTP status carried by err, or 0 when err is not
// an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Kind names the taxonomy entry of err for user-facing messages.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAPI):
		return "api"
	case errors.Is(err, ErrPrecondition), errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrPlayback):
		return "playback"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrInvalidState):
		return "state"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrSessionClosed):
		return "closed"
	default:
		return "unknown"
	}
}
