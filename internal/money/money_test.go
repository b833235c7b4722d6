package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		currency string
		want     int64
		wantErr  bool
	}{
		{name: "two decimals", input: "19.99", currency: "usd", want: 1999},
		{name: "four decimals", input: "100.0000", currency: "USD", want: 10000},
		{name: "integer", input: "42", currency: "EUR", want: 4200},
		{name: "negative", input: "-5.50", currency: "USD", want: -550},
		{name: "zero exponent currency", input: "1500", currency: "JPY", want: 1500},
		{name: "three exponent currency", input: "1.234", currency: "KWD", want: 1234},
		{name: "rounds half away from zero", input: "0.125", currency: "USD", want: 13},
		{name: "whitespace", input: " 7.10 ", currency: "USD", want: 710},
		{name: "empty", input: "", currency: "USD", wantErr: true},
		{name: "garbage", input: "ten dollars", currency: "USD", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseDecimal(tt.input, tt.currency)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Minor)
		})
	}
}

func TestParseOptionalDecimal_EmptyIsZero(t *testing.T) {
	m, err := ParseOptionalDecimal("", "cad")
	require.NoError(t, err)
	assert.Equal(t, Money{Minor: 0, Currency: "CAD"}, m)
}

func TestParseNumber_AvoidsFloat(t *testing.T) {
	// 0.1 + 0.2 style values must convert exactly
	m, err := ParseNumber(json.Number("0.30"), "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(30), m.Minor)

	m, err = ParseNumber(json.Number("1e2"), "USD")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), m.Minor)
}

func TestMoney_Add_Mismatch(t *testing.T) {
	_, err := New(100, "USD").Add(New(50, "EUR"))
	assert.Error(t, err)

	sum, err := New(100, "USD").Add(New(50, "usd"))
	require.NoError(t, err)
	assert.Equal(t, int64(150), sum.Minor)
}

func TestMoney_SignHelpers(t *testing.T) {
	m := New(-250, "USD")
	assert.True(t, m.IsNegative())
	assert.Equal(t, int64(250), m.Abs().Minor)
	assert.True(t, m.Neg().IsPositive())
	assert.True(t, New(0, "USD").IsZero())
}

func TestExponent(t *testing.T) {
	assert.Equal(t, int32(2), Exponent("usd"))
	assert.Equal(t, int32(0), Exponent("JPY"))
	assert.Equal(t, int32(3), Exponent("BHD"))
	assert.Equal(t, int32(2), Exponent(""))
}

func TestDecimal(t *testing.T) {
	assert.True(t, New(14000, "USD").Decimal().Equal(decimal.NewFromInt(140)))
	assert.Equal(t, "140.00 USD", New(14000, "USD").String())
}
