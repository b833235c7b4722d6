package models

import (
	"time"

	"revattest/internal/money"
)

// Provider names
const (
	ProviderStripe      = "stripe"
	ProviderShopify     = "shopify"
	ProviderWooCommerce = "woocommerce"
	ProviderPlaid       = "plaid"
	ProviderSquare      = "square"
	ProviderToast       = "toast"
	ProviderBigCommerce = "bigcommerce"
)

// NormalizedOrder is the canonical order every adapter produces.
// Amounts are minor units of Currency. Negative totals only appear on
// refund entries synthesized as orders, which carry StatusRefunded.
type NormalizedOrder struct {
	MerchantID      string          `json:"merchant_id,omitempty" gorm:"primaryKey"`
	Provider        string          `json:"provider" gorm:"primaryKey"`
	ID              string          `json:"id" gorm:"primaryKey"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index;autoCreateTime:false"`
	TotalPrice      int64           `json:"total_price_minor" gorm:"not null"`
	Subtotal        int64           `json:"subtotal_minor" gorm:"not null"`
	TotalDiscounts  int64           `json:"total_discounts_minor" gorm:"not null"`
	LineItemCount   int             `json:"line_item_count"`
	FinancialStatus FinancialStatus `json:"financial_status" gorm:"size:16;not null"`
	CustomerID      *string         `json:"customer_id,omitempty"`
	Currency        string          `json:"currency" gorm:"size:3;not null"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
}

// Total returns TotalPrice as Money.
func (o NormalizedOrder) Total() money.Money {
	return money.New(o.TotalPrice, o.Currency)
}

// IsRefundEntry reports whether the order is a synthesized refund.
func (o NormalizedOrder) IsRefundEntry() bool {
	return o.TotalPrice < 0
}

// NormalizedRefund is a first-class refund or chargeback. Amount is positive.
type NormalizedRefund struct {
	MerchantID string    `json:"merchant_id,omitempty" gorm:"primaryKey"`
	Provider   string    `json:"provider" gorm:"primaryKey"`
	ID         string    `json:"id" gorm:"primaryKey"`
	CreatedAt  time.Time `json:"created_at" gorm:"index;autoCreateTime:false"`
	OrderID    string    `json:"order_id"`
	Amount     int64     `json:"amount_minor" gorm:"not null"`
	Currency   string    `json:"currency" gorm:"size:3;not null"`
	Chargeback bool      `json:"chargeback,omitempty"`
}

// NormalizedCustomer carries lifetime figures reported by the provider.
type NormalizedCustomer struct {
	MerchantID  string    `json:"merchant_id,omitempty" gorm:"primaryKey"`
	Provider    string    `json:"provider" gorm:"primaryKey"`
	ID          string    `json:"id" gorm:"primaryKey"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	OrdersCount int       `json:"orders_count"`
	TotalSpent  int64     `json:"total_spent_minor"`
	Currency    string    `json:"currency" gorm:"size:3"`
}
