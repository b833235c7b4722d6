package registry

import (
	"errors"
	"testing"

	"revattest/internal/adapters"
	apperrors "revattest/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, name := range Names() {
		a, err := New(name, adapters.Options{})
		require.NoError(t, err, name)
		assert.Equal(t, name, a.Name())
	}

	a, err := New(" Stripe ", adapters.Options{})
	require.NoError(t, err)
	assert.Equal(t, "stripe", a.Name())
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("paypal", adapters.Options{})
	assert.True(t, errors.Is(err, apperrors.ErrUnknownProvider))
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"bigcommerce", "plaid", "shopify", "square", "stripe", "toast", "woocommerce"}, Names())
}
