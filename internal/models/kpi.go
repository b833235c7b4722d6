package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// KPIResult is an immutable snapshot of windowed metrics.
// Money fields are minor units of Currency. Rates are rounded to four
// decimal places and AOV to two, so nothing here is a float.
type KPIResult struct {
	GrossSales  int64 `json:"gross_sales_minor"`
	Discounts   int64 `json:"discounts_minor"`
	Refunds     int64 `json:"refunds_minor"`
	NetSales    int64 `json:"net_sales_minor"`
	Chargebacks int64 `json:"chargebacks_minor"`

	OrdersCount  int `json:"orders_count"`
	ItemsSold    int `json:"items_sold"`
	NewCustomers int `json:"new_customers"`

	AOV                   decimal.Decimal  `json:"aov"`
	ReturningCustomerRate decimal.Decimal  `json:"returning_customer_rate"`
	RepeatPurchaseRate    decimal.Decimal  `json:"repeat_purchase_rate"`
	DiscountPenetration   decimal.Decimal  `json:"discount_penetration"`
	DiscountRate          decimal.Decimal  `json:"discount_rate"`
	GrowthT30             *decimal.Decimal `json:"growth_t30,omitempty"`

	Currency    string    `json:"currency"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Timezone    string    `json:"timezone"`
	ComputedAt  time.Time `json:"computed_at"`

	// Excluded counts records dropped from aggregation; Warnings says why.
	Excluded int      `json:"excluded"`
	Warnings []string `json:"warnings,omitempty"`
}
