// Package kpi aggregates canonical records into windowed business metrics.
// Compute is pure: the clock is an input and nothing is shared between
// calls.
package kpi

import (
	"fmt"
	"time"

	"revattest/internal/models"
	"revattest/internal/money"

	"github.com/shopspring/decimal"
)

const (
	// DefaultWindowDays is used when Input.WindowDays is not positive.
	DefaultWindowDays = 30

	ratePlaces = 4
	aovPlaces  = 2
)

// Input is everything Compute needs. Customers is optional; without it the
// customer-derived metrics are zero.
type Input struct {
	Orders          []models.NormalizedOrder
	Refunds         []models.NormalizedRefund
	Customers       []models.NormalizedCustomer
	Timezone        string
	WindowDays      int
	PriorWindowDays int

	// Currency fixes the result currency. Empty takes the first record's.
	Currency string
	Now      time.Time
}

// totals is the aggregation of one window.
type totals struct {
	gross       int64
	discounts   int64
	refunds     int64
	chargebacks int64
	orders      int
	items       int
	discounted  int
	returning   int
	buyers      int
	repeat      int
}

func (t totals) net() int64 {
	return t.gross - t.discounts - t.refunds
}

// Compute aggregates in over the trailing window ending at in.Now. Records
// with a zero timestamp or a foreign currency are excluded and reported in
// Warnings; Compute never fails.
func Compute(in Input) models.KPIResult {
	var warnings []string
	warn := func(format string, args ...interface{}) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	tzName := in.Timezone
	if tzName == "" {
		tzName = "UTC"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		warn("timezone %q: %v; using UTC", tzName, err)
		tzName, loc = "UTC", time.UTC
	}

	days := in.WindowDays
	if days <= 0 {
		days = DefaultWindowDays
	}
	window := Trailing(in.Now.In(loc), days)
	currency := resultCurrency(in)

	orders := make([]models.NormalizedOrder, 0, len(in.Orders))
	excluded := 0
	for _, o := range in.Orders {
		switch {
		case o.CreatedAt.IsZero():
			warn("order %s/%s: missing timestamp", o.Provider, o.ID)
		case money.NormalizeCurrency(o.Currency) != currency:
			warn("order %s/%s: currency %s differs from %s", o.Provider, o.ID, o.Currency, currency)
		default:
			orders = append(orders, o)
			continue
		}
		excluded++
	}
	refunds := make([]models.NormalizedRefund, 0, len(in.Refunds))
	for _, r := range in.Refunds {
		switch {
		case r.CreatedAt.IsZero():
			warn("refund %s/%s: missing timestamp", r.Provider, r.ID)
		case money.NormalizeCurrency(r.Currency) != currency:
			warn("refund %s/%s: currency %s differs from %s", r.Provider, r.ID, r.Currency, currency)
		default:
			refunds = append(refunds, r)
			continue
		}
		excluded++
	}

	var lifetime map[string]int
	if in.Customers != nil {
		lifetime = make(map[string]int, len(in.Customers))
		for _, c := range in.Customers {
			lifetime[customerKey(c.Provider, c.ID)] = c.OrdersCount
		}
	}

	cur := aggregate(window, orders, refunds, lifetime)

	result := models.KPIResult{
		GrossSales:            cur.gross,
		Discounts:             cur.discounts,
		Refunds:               cur.refunds,
		NetSales:              cur.net(),
		Chargebacks:           cur.chargebacks,
		OrdersCount:           cur.orders,
		ItemsSold:             cur.items,
		NewCustomers:          newCustomers(window, in.Customers),
		AOV:                   aov(cur.net(), cur.orders, currency),
		ReturningCustomerRate: ratio(int64(cur.returning), int64(cur.orders)),
		RepeatPurchaseRate:    ratio(int64(cur.repeat), int64(cur.buyers)),
		DiscountPenetration:   ratio(int64(cur.discounted), int64(cur.orders)),
		DiscountRate:          ratio(cur.discounts, cur.gross),
		Currency:              currency,
		WindowStart:           window.Start,
		WindowEnd:             window.End,
		Timezone:              tzName,
		ComputedAt:            in.Now.UTC(),
		Excluded:              excluded,
		Warnings:              warnings,
	}

	if in.PriorWindowDays > 0 {
		prior := aggregate(window.Prior(in.PriorWindowDays), orders, refunds, lifetime)
		g := Growth(cur.net(), prior.net())
		result.GrowthT30 = &g
	}
	return result
}

// aggregate sums one window. Voided orders are ignored; order-shaped refund
// entries add to refunds instead of sales.
func aggregate(w Window, orders []models.NormalizedOrder, refunds []models.NormalizedRefund, lifetime map[string]int) totals {
	var t totals
	perCustomer := make(map[string]int)

	for _, o := range orders {
		if !w.Contains(o.CreatedAt) || o.FinancialStatus == models.StatusVoided {
			continue
		}
		if o.IsRefundEntry() {
			t.refunds += -o.TotalPrice
			continue
		}
		t.gross += o.Subtotal
		t.discounts += o.TotalDiscounts
		t.orders++
		t.items += o.LineItemCount
		if o.TotalDiscounts > 0 {
			t.discounted++
		}
		if o.CustomerID != nil {
			key := customerKey(o.Provider, *o.CustomerID)
			perCustomer[key]++
			if lifetime[key] > 1 {
				t.returning++
			}
		}
	}
	for _, r := range refunds {
		if !w.Contains(r.CreatedAt) {
			continue
		}
		t.refunds += r.Amount
		if r.Chargeback {
			t.chargebacks += r.Amount
		}
	}

	t.buyers = len(perCustomer)
	for _, n := range perCustomer {
		if n > 1 {
			t.repeat++
		}
	}
	return t
}

// customerKey scopes a customer id to its provider; ids from different
// providers never identify the same person.
func customerKey(provider, id string) string {
	return provider + "/" + id
}

func newCustomers(w Window, customers []models.NormalizedCustomer) int {
	n := 0
	for _, c := range customers {
		if !c.CreatedAt.IsZero() && w.Contains(c.CreatedAt) {
			n++
		}
	}
	return n
}

// resultCurrency picks the explicit currency, else the first record's.
func resultCurrency(in Input) string {
	if in.Currency != "" {
		return money.NormalizeCurrency(in.Currency)
	}
	for _, o := range in.Orders {
		if o.Currency != "" {
			return money.NormalizeCurrency(o.Currency)
		}
	}
	for _, r := range in.Refunds {
		if r.Currency != "" {
			return money.NormalizeCurrency(r.Currency)
		}
	}
	return money.DefaultCurrency
}

// ratio is num/den rounded to four places, or zero when den is not positive.
func ratio(num, den int64) decimal.Decimal {
	if den <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(num).DivRound(decimal.NewFromInt(den), ratePlaces)
}

// aov is net sales in major units per order, rounded to cents.
func aov(net int64, orders int, currency string) decimal.Decimal {
	if orders <= 0 {
		return decimal.Zero
	}
	return money.New(net, currency).Decimal().DivRound(decimal.NewFromInt(int64(orders)), aovPlaces)
}

// Growth is the percentage change from prior to current, rounded to four
// places. A zero prior yields zero.
func Growth(current, prior int64) decimal.Decimal {
	if prior == 0 {
		return decimal.Zero
	}
	diff := decimal.NewFromInt(current - prior).Mul(decimal.NewFromInt(100))
	return diff.DivRound(decimal.NewFromInt(prior), ratePlaces)
}
