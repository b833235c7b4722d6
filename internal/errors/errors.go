// Package errors defines the domain error values shared by the adapters,
// the attestation builder, and the HTTP layer.
package errors

import (
	stderrors "errors"
	"fmt"
)

// DomainError is a sentinel carrying a stable machine-readable code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// CodeOf returns the code of the first DomainError in err's chain.
func CodeOf(err error) string {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Wrap annotates a sentinel with detail while keeping errors.Is working.
func Wrap(sentinel *DomainError, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
