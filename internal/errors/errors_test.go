package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError_Message(t *testing.T) {
	err := StatusError("square", "list payments", 503, "service unavailable")
	assert.Equal(t, "square: list payments: status 503: service unavailable", err.Error())

	err = NewProviderError("stripe", "list charges", fmt.Errorf("dial tcp: refused"))
	assert.Equal(t, "stripe: list charges: dial tcp: refused", err.Error())
}

func TestProviderError_Retryable(t *testing.T) {
	tests := []struct {
		name string
		err  *ProviderError
		want bool
	}{
		{name: "rate limited", err: StatusError("shopify", "orders", 429, "slow down"), want: true},
		{name: "server error", err: StatusError("shopify", "orders", 502, "bad gateway"), want: true},
		{name: "unauthorized", err: StatusError("shopify", "orders", 401, "bad token"), want: false},
		{name: "pagination loop", err: NewProviderError("square", "payments", ErrPaginationLoop), want: false},
		{name: "page limit", err: NewProviderError("square", "payments", ErrPageLimit), want: true},
		{name: "deadline", err: NewProviderError("toast", "orders", context.DeadlineExceeded), want: true},
		{name: "canceled", err: NewProviderError("toast", "orders", context.Canceled), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Retryable())
		})
	}
}

func TestWrapKeepsSentinel(t *testing.T) {
	err := Wrap(ErrPrecision, "aov %s", "1.234")
	assert.True(t, stderrors.Is(err, ErrPrecision))
	assert.Equal(t, "PRECISION", CodeOf(err))
	assert.Equal(t, "", CodeOf(fmt.Errorf("plain")))

	wrapped := fmt.Errorf("fetch: %w", NewProviderError("plaid", "transactions", ErrMalformedPayload))
	pe, ok := AsProviderError(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "plaid", pe.Provider)
	assert.True(t, stderrors.Is(wrapped, ErrMalformedPayload))
}
