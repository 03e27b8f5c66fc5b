package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrCircuitOpen indicates the circuit breaker rejected the call
	// without contacting the backend.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrProviderDisabled indicates the provider is disabled by config.
	ErrProviderDisabled = errors.New("provider is disabled")

	// ErrProviderNotFound indicates no provider matched the lookup.
	ErrProviderNotFound = errors.New("provider not found")
)

// ConfigError indicates a provider configuration problem detected at
// construction or validation time.
type ConfigError struct {
	Provider string
	Field    string
	Message  string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("provider %s: invalid config field %s: %s", e.Provider, e.Field, e.Message)
	}
	return fmt.Sprintf("provider %s: invalid config: %s", e.Provider, e.Message)
}

// CredentialError indicates authentication with the backend failed.
type CredentialError struct {
	Provider string
	Message  string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("provider %s: credential error: %s", e.Provider, e.Message)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// RateLimitError indicates the backend (or the local token bucket)
// rejected a request for exceeding rate limits.
type RateLimitError struct {
	Provider   string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %s: rate limited (retry after %s): %s", e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %s: rate limited: %s", e.Provider, e.Message)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// CircuitOpenError is returned when a call is rejected because the
// provider's circuit breaker is open. It wraps ErrCircuitOpen so callers
// can match with errors.Is(err, ErrCircuitOpen).
type CircuitOpenError struct {
	Provider  string
	Operation string
	// RetryAfter is the remaining cool-down at rejection time.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("provider %s: circuit breaker open for %s (retry after %s)", e.Provider, e.Operation, e.RetryAfter)
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// OperationError wraps a backend failure with provider and operation
// context while preserving the underlying error for errors.Is/As.
type OperationError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("provider %s: %s failed: %v", e.Provider, e.Operation, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// rateLimitMarkers are substrings that identify rate-limiting failures
// in backend error text.
var rateLimitMarkers = []string{
	"rate limit",
	"rate-limit",
	"too many requests",
	"quota exceeded",
	"resource exhausted",
	"429",
}

// IsRateLimitError reports whether err is a rate-limiting failure,
// either a typed *RateLimitError or a backend error whose text matches
// a known rate-limit pattern.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsCredentialError reports whether err is an authentication failure.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	var ce *CredentialError
	if errors.As(err, &ce) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "authentication failed") ||
		strings.Contains(msg, "401") ||
		strings.Contains(msg, "403")
}

// ErrorType classifies err into a short label used for metrics and logs.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case IsRateLimitError(err):
		return "rate_limit"
	case IsCredentialError(err):
		return "credential"
	case isTimeout(err):
		return "timeout"
	default:
		return "operation"
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
