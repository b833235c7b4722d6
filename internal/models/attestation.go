package models

// AttestationV1 is the versioned revenue statement for one merchant period.
// Currency metrics are strings with two fraction digits and rate metrics
// strings with four, so the document never contains a float.
type AttestationV1 struct {
	SchemaVersion string       `json:"schemaVersion"`
	Period        Period       `json:"period"`
	Merchant      MerchantInfo `json:"merchant"`
	Metrics       Metrics      `json:"metrics"`
	Nonce         string       `json:"nonce"`
	Timestamp     string       `json:"timestamp"`
	PreviousCID   string       `json:"previousCid,omitempty"`
}

// Period is the attested window, start inclusive and end exclusive.
type Period struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Timezone string `json:"timezone"`
}

// MerchantInfo identifies the attesting merchant.
type MerchantInfo struct {
	MerchantID string `json:"merchantId"`
	Currency   string `json:"currency"`
	PlatformID string `json:"platformId,omitempty"`
}

// Metrics mirrors KPIResult in fixed-decimal string form.
type Metrics struct {
	GrossSales            string  `json:"gross_sales"`
	Discounts             string  `json:"discounts"`
	Refunds               string  `json:"refunds"`
	NetSales              string  `json:"net_sales"`
	OrdersCount           int     `json:"orders_count"`
	ItemsSold             int     `json:"items_sold"`
	AOV                   string  `json:"aov"`
	NewCustomers          int     `json:"new_customers"`
	ReturningCustomerRate string  `json:"returning_customer_rate"`
	RepeatPurchaseRate    string  `json:"repeat_purchase_rate"`
	DiscountPenetration   string  `json:"discount_penetration"`
	DiscountRate          string  `json:"discount_rate"`
	GrowthT30             *string `json:"growth_t30,omitempty"`
	Chargebacks           *string `json:"chargebacks,omitempty"`
}
