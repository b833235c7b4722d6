// Package attestation builds, serializes, hashes, and verifies revenue
// attestations. A document is built once from an immutable KPI result and
// never changes after it is hashed.
package attestation

import (
	"time"

	apperrors "revattest/internal/errors"
	"revattest/internal/models"
	"revattest/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	currencyPlaces = 2
	ratePlaces     = 4

	// TimestampLayout is RFC 3339 with millisecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Merchant identifies who the document attests for.
type Merchant struct {
	ID         string
	PlatformID string
}

type buildOptions struct {
	previousCID string
	now         func() time.Time
	nonce       string
}

// Option customizes Build.
type Option func(*buildOptions)

// WithPreviousCID links the document to the prior period's content address.
// The value is carried as-is.
func WithPreviousCID(cid string) Option {
	return func(o *buildOptions) { o.previousCID = cid }
}

// WithClock sets the build clock.
func WithClock(now func() time.Time) Option {
	return func(o *buildOptions) { o.now = now }
}

// WithNonce overrides the derived nonce.
func WithNonce(nonce string) Option {
	return func(o *buildOptions) { o.nonce = nonce }
}

// Build maps kpis into a version 1 document. Every currency metric is
// formatted with two fraction digits and every rate with four; a value
// carrying more precision than its field allows is rejected with
// errors.ErrPrecision. The result is checked against the embedded schema.
func Build(kpis models.KPIResult, merchant Merchant, opts ...Option) (*models.AttestationV1, error) {
	o := buildOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if merchant.ID == "" {
		return nil, apperrors.ErrMissingMerchant
	}
	if kpis.Currency == "" {
		return nil, apperrors.ErrMissingCurrency
	}
	currency := money.NormalizeCurrency(kpis.Currency)
	timezone := kpis.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	metrics, err := buildMetrics(kpis, currency)
	if err != nil {
		return nil, err
	}

	builtAt := o.now().UTC()
	timestamp := builtAt.Format(TimestampLayout)
	nonce := o.nonce
	if nonce == "" {
		nonce = Nonce(merchant.ID, builtAt)
	}

	doc := &models.AttestationV1{
		SchemaVersion: SchemaVersion,
		Period: models.Period{
			Start:    kpis.WindowStart.Format(time.RFC3339),
			End:      kpis.WindowEnd.Format(time.RFC3339),
			Timezone: timezone,
		},
		Merchant: models.MerchantInfo{
			MerchantID: merchant.ID,
			Currency:   currency,
			PlatformID: merchant.PlatformID,
		},
		Metrics:     metrics,
		Nonce:       nonce,
		Timestamp:   timestamp,
		PreviousCID: o.previousCID,
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Nonce derives a name-based UUID from the merchant and build time, so a
// rebuild at the same instant reproduces the same document.
func Nonce(merchantID string, builtAt time.Time) string {
	name := merchantID + "|" + builtAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func buildMetrics(k models.KPIResult, currency string) (models.Metrics, error) {
	aov, err := fixed("aov", k.AOV, currencyPlaces)
	if err != nil {
		return models.Metrics{}, err
	}
	rates := make([]string, 4)
	for i, r := range []struct {
		field string
		value decimal.Decimal
	}{
		{"returning_customer_rate", k.ReturningCustomerRate},
		{"repeat_purchase_rate", k.RepeatPurchaseRate},
		{"discount_penetration", k.DiscountPenetration},
		{"discount_rate", k.DiscountRate},
	} {
		if rates[i], err = fixed(r.field, r.value, ratePlaces); err != nil {
			return models.Metrics{}, err
		}
	}

	amounts := make([]string, 4)
	for i, a := range []struct {
		field string
		minor int64
	}{
		{"gross_sales", k.GrossSales},
		{"discounts", k.Discounts},
		{"refunds", k.Refunds},
		{"net_sales", k.NetSales},
	} {
		if amounts[i], err = amount(a.field, a.minor, currency); err != nil {
			return models.Metrics{}, err
		}
	}

	m := models.Metrics{
		GrossSales:            amounts[0],
		Discounts:             amounts[1],
		Refunds:               amounts[2],
		NetSales:              amounts[3],
		OrdersCount:           k.OrdersCount,
		ItemsSold:             k.ItemsSold,
		AOV:                   aov,
		NewCustomers:          k.NewCustomers,
		ReturningCustomerRate: rates[0],
		RepeatPurchaseRate:    rates[1],
		DiscountPenetration:   rates[2],
		DiscountRate:          rates[3],
	}
	if k.GrowthT30 != nil {
		g, err := fixed("growth_t30", *k.GrowthT30, ratePlaces)
		if err != nil {
			return models.Metrics{}, err
		}
		m.GrowthT30 = &g
	}
	if k.Chargebacks > 0 {
		cb, err := amount("chargebacks", k.Chargebacks, currency)
		if err != nil {
			return models.Metrics{}, err
		}
		m.Chargebacks = &cb
	}
	return m, nil
}

// amount formats minor units with two fraction digits. Amounts in
// three-digit currencies must be whole multiples of ten minor units.
func amount(field string, minor int64, currency string) (string, error) {
	return fixed(field, money.New(minor, currency).Decimal(), currencyPlaces)
}

// fixed formats d with exactly places fraction digits, rejecting values
// that would need rounding.
func fixed(field string, d decimal.Decimal, places int32) (string, error) {
	if !d.Equal(d.Round(places)) {
		return "", apperrors.Wrap(apperrors.ErrPrecision, "%s=%s exceeds %d places", field, d.String(), places)
	}
	return d.StringFixed(places), nil
}
