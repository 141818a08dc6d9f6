// Package llm provides the multi-provider text-generation core: per-provider
// clients with typed error classification and bounded retry, and an
// orchestrator with ordered fallback across a model preference list.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a provider failure for retry/fallback decisions.
type ErrorKind string

const (
	// KindRateLimited — provider throttled the request (retried).
	KindRateLimited ErrorKind = "rate_limited"
	// KindTransientAPI — transient network or 5xx failure (retried).
	KindTransientAPI ErrorKind = "transient_api"
	// KindContentBlocked — provider refused the content; not retried.
	KindContentBlocked ErrorKind = "content_blocked"
	// KindAuthFailed — credential rejected; not retried.
	KindAuthFailed ErrorKind = "auth_failed"
	// KindLibraryMissing — provider client unavailable in this process; not retried.
	KindLibraryMissing ErrorKind = "library_missing"
	// KindResponseMalformed — vendor response could not be normalized to text; not retried.
	KindResponseMalformed ErrorKind = "response_malformed"
	// KindUnexpected — uncategorized failure; retried exactly once.
	KindUnexpected ErrorKind = "unexpected"
)

// ProviderError is a classified failure from a single provider call.
type ProviderError struct {
	Provider string
	Model    string
	Kind     ErrorKind
	Err      error
}

// Error returns the formatted error message.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s:%s [%s]: %v", e.Provider, e.Model, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a classified provider error.
func NewProviderError(provider, model string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Kind: kind, Err: err}
}

// KindOf extracts the error kind; non-provider errors classify as unexpected.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// retryable reports whether a failure of the given kind should be retried
// on the same provider. attempt is 1-based; unexpected failures get exactly
// one extra attempt.
func retryable(kind ErrorKind, attempt int) bool {
	switch kind {
	case KindRateLimited, KindTransientAPI:
		return true
	case KindUnexpected:
		return attempt == 1
	default:
		return false
	}
}

// AllProvidersFailed is raised when every candidate in the model preference
// list has been exhausted. It carries the last provider error observed.
type AllProvidersFailed struct {
	Attempted int
	LastErr   error
}

// Error returns the formatted error message.
func (e *AllProvidersFailed) Error() string {
	return fmt.Sprintf("all %d providers failed, last error: %v", e.Attempted, e.LastErr)
}

// Unwrap returns the last provider error.
func (e *AllProvidersFailed) Unwrap() error {
	return e.LastErr
}

// classifyTransportError maps transport-level failures onto the taxonomy.
// Context cancellation is passed through untouched so deadline propagation
// is visible to callers.
func classifyTransportError(err error) ErrorKind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransientAPI
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientAPI
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"eof",
	} {
		if strings.Contains(msg, s) {
			return KindTransientAPI
		}
	}

	return KindUnexpected
}
