package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
)

// ProviderError tags a fetch or payload failure with the provider that
// caused it, so "stripe unreachable" and "square malformed payload" differ.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s: status %d: %s", e.Provider, e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Op, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may try the fetch again.
func (e *ProviderError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode != 0:
		return false
	}
	if stderrors.Is(e.Err, ErrPaginationLoop) || stderrors.Is(e.Err, ErrMalformedPayload) ||
		stderrors.Is(e.Err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return stderrors.As(e.Err, &netErr) || stderrors.Is(e.Err, context.DeadlineExceeded) || stderrors.Is(e.Err, ErrPageLimit)
}

// NewProviderError wraps err for provider and operation.
func NewProviderError(provider, op string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// StatusError builds a ProviderError for a non-success HTTP response.
func StatusError(provider, op string, status int, message string) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, StatusCode: status, Message: message}
}

// AsProviderError extracts the first ProviderError in err's chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
