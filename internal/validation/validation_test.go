package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Window(t *testing.T) {
	tests := []struct {
		name     string
		tz       string
		days     int
		prior    int
		wantErrs []string
	}{
		{name: "defaults", wantErrs: nil},
		{name: "valid", tz: "America/New_York", days: 30, prior: 30},
		{name: "bad timezone", tz: "Mars/Olympus", days: 30, wantErrs: []string{"timezone"}},
		{name: "negative window", days: -1, wantErrs: []string{"window_days"}},
		{name: "too long", days: 30, prior: 400, wantErrs: []string{"prior_window_days"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.Window(tt.tz, tt.days, tt.prior)
			assert.Len(t, v.Errors, len(tt.wantErrs))
			for _, f := range tt.wantErrs {
				assert.Contains(t, v.Errors, f)
			}
		})
	}
}

func TestValidator_CurrencyAndProvider(t *testing.T) {
	v := New()
	v.Currency("currency", "usd")
	v.Provider("providers[0]", " Shopify ")
	assert.True(t, v.Valid())
	assert.Equal(t, "", v.Error())

	v.Currency("currency", "US$")
	v.Provider("providers[1]", "etsy")
	v.Required("merchant_id", "  ")
	assert.False(t, v.Valid())
	assert.Len(t, v.Errors, 3)
	assert.Contains(t, v.Errors["providers[1]"], "shopify")
	assert.Equal(t, "currency must be a three-letter currency code; merchant_id must not be empty; providers[1] must be one of "+
		"bigcommerce, plaid, shopify, square, stripe, toast, woocommerce", v.Error())
}
