// Package money represents provider amounts as integer minor units.
// Providers report money as cents, as decimal strings, or as JSON numbers;
// everything is converted here so nothing downstream touches floating point.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a provider omits the currency code.
const DefaultCurrency = "USD"

// Money represents a monetary value in a specific currency.
// It uses integer math (minor units) to avoid floating point errors.
type Money struct {
	Minor    int64  `json:"minor"`
	Currency string `json:"currency"` // ISO 4217 code
}

// ISO 4217 exponents that differ from the usual two decimal places.
var exponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0,
	"KRW": 0, "PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0,
	"XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

// NormalizeCurrency upper-cases a currency code and applies the default.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// Exponent returns the number of minor-unit digits for currency.
func Exponent(currency string) int32 {
	if exp, ok := exponents[NormalizeCurrency(currency)]; ok {
		return exp
	}
	return 2
}

// New creates a Money from an amount already expressed in minor units.
func New(minor int64, currency string) Money {
	return Money{Minor: minor, Currency: NormalizeCurrency(currency)}
}

// FromDecimal converts a major-unit decimal to minor units, rounding half
// away from zero when the source carries more digits than the currency.
func FromDecimal(d decimal.Decimal, currency string) Money {
	currency = NormalizeCurrency(currency)
	scaled := d.Shift(Exponent(currency)).Round(0)
	return Money{Minor: scaled.IntPart(), Currency: currency}
}

// ParseDecimal parses a major-unit decimal string such as "19.99".
func ParseDecimal(s, currency string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return FromDecimal(d, currency), nil
}

// ParseOptionalDecimal is ParseDecimal with an empty string meaning zero.
func ParseOptionalDecimal(s, currency string) (Money, error) {
	if strings.TrimSpace(s) == "" {
		return New(0, currency), nil
	}
	return ParseDecimal(s, currency)
}

// ParseNumber converts a JSON number in major units (decoded with UseNumber
// or into a json.Number field) without passing through float64.
func ParseNumber(n json.Number, currency string) (Money, error) {
	if n == "" {
		return New(0, currency), nil
	}
	return ParseDecimal(n.String(), currency)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Minor, -Exponent(m.Currency))
}

// Add adds two Money amounts. Returns error on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Minor: m.Minor + other.Minor, Currency: m.Currency}, nil
}

// Sub subtracts other Money from m. Returns error on currency mismatch.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return Money{Minor: m.Minor - other.Minor, Currency: m.Currency}, nil
}

// Neg returns the amount with its sign flipped.
func (m Money) Neg() Money {
	return Money{Minor: -m.Minor, Currency: m.Currency}
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	if m.Minor < 0 {
		return m.Neg()
	}
	return m
}

// IsZero returns true if the amount is 0.
func (m Money) IsZero() bool {
	return m.Minor == 0
}

// IsPositive returns true if the amount is > 0.
func (m Money) IsPositive() bool {
	return m.Minor > 0
}

// IsNegative returns true if the amount is < 0.
func (m Money) IsNegative() bool {
	return m.Minor < 0
}

func (m Money) String() string {
	return m.Decimal().StringFixed(Exponent(m.Currency)) + " " + m.Currency
}
