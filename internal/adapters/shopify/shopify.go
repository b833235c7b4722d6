// Package shopify normalizes orders from the Shopify Admin REST API.
// Money arrives as decimal strings in the shop currency.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"revattest/internal/adapters"
	"revattest/internal/models"
	"revattest/internal/money"
)

const (
	name       = models.ProviderShopify
	apiVersion = "2024-01"
	pageSize   = 250
)

var statuses = models.StatusMap{
	"pending":            models.StatusPending,
	"authorized":         models.StatusPending,
	"partially_paid":     models.StatusPaid,
	"paid":               models.StatusPaid,
	"partially_refunded": models.StatusPaid,
	"refunded":           models.StatusRefunded,
	"voided":             models.StatusVoided,
	"expired":            models.StatusFailed,
}

var nextLink = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// Order is the subset of a Shopify order the adapter reads.
type Order struct {
	ID                  json.Number `json:"id"`
	CreatedAt           string      `json:"created_at"`
	CancelledAt         *string     `json:"cancelled_at"`
	Currency            string      `json:"currency"`
	FinancialStatus     string      `json:"financial_status"`
	TotalPrice          string      `json:"total_price"`
	SubtotalPrice       string      `json:"subtotal_price"`
	TotalLineItemsPrice string      `json:"total_line_items_price"`
	TotalDiscounts      string      `json:"total_discounts"`
	LineItems           []LineItem  `json:"line_items"`
	Customer            *Customer   `json:"customer"`
	Refunds             []Refund    `json:"refunds"`
}

type LineItem struct {
	Quantity int `json:"quantity"`
}

type Customer struct {
	ID          json.Number `json:"id"`
	CreatedAt   string      `json:"created_at"`
	OrdersCount int         `json:"orders_count"`
	TotalSpent  string      `json:"total_spent"`
	Currency    string      `json:"currency"`
}

type Refund struct {
	ID           json.Number   `json:"id"`
	CreatedAt    string        `json:"created_at"`
	Transactions []Transaction `json:"transactions"`
}

type Transaction struct {
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Amount string `json:"amount"`
}

// Feed is the raw Shopify data for one window.
type Feed struct {
	Orders []Order
	Pages  int
}

// Adapter reads orders with an Admin API access token. Request params must
// carry shop_domain.
type Adapter struct {
	*adapters.Base
}

func New(opts adapters.Options) *Adapter {
	return &Adapter{Base: adapters.NewBase(name, "", opts)}
}

func (a *Adapter) Fetch(ctx context.Context, req adapters.Request) (*adapters.Batch, error) {
	ctx, span := a.StartSpan(ctx, "fetch", req)
	defer span.End()

	feed, err := a.FetchRaw(ctx, req)
	return a.Finish(Normalize(feed), feed.Pages, err)
}

// FetchRaw follows Link rel="next" pages until exhausted.
func (a *Adapter) FetchRaw(ctx context.Context, req adapters.Request) (*Feed, error) {
	feed := &Feed{}
	if err := a.RequireCredential(req); err != nil {
		return feed, err
	}
	shop, err := a.RequireParam(req, "shop_domain")
	if err != nil {
		return feed, err
	}
	root := a.BaseURL()
	if root == "" {
		root = "https://" + strings.TrimSuffix(shop, "/")
	}

	q := url.Values{}
	q.Set("status", "any")
	q.Set("created_at_min", req.Start.UTC().Format(time.RFC3339))
	q.Set("created_at_max", req.End.Add(-time.Second).UTC().Format(time.RFC3339))
	q.Set("limit", fmt.Sprint(a.PageSize(pageSize)))
	next := fmt.Sprintf("%s/admin/api/%s/orders.json?%s", root, apiVersion, q.Encode())

	header := http.Header{}
	header.Set("X-Shopify-Access-Token", req.Credential)

	pager := a.Paginator("list orders")
	defer func() { feed.Pages = pager.Pages() }()

	token := ""
	for next != "" {
		if err := pager.Next(token); err != nil {
			return feed, err
		}
		var page struct {
			Orders []Order `json:"orders"`
		}
		resp, err := a.Do(ctx, adapters.Call{
			Op:           "list orders",
			URL:          next,
			Header:       header,
			ErrorMessage: errorMessage,
		}, &page)
		if err != nil {
			return feed, err
		}
		feed.Orders = append(feed.Orders, page.Orders...)

		next, token = nextPage(resp.Header.Get("Link"))
	}
	return feed, nil
}

// nextPage extracts the next URL and its page_info cursor from a Link header.
func nextPage(link string) (string, string) {
	m := nextLink.FindStringSubmatch(link)
	if m == nil {
		return "", ""
	}
	u, err := url.Parse(m[1])
	if err != nil {
		return "", ""
	}
	return m[1], u.Query().Get("page_info")
}

func errorMessage(body []byte) string {
	var e struct {
		Errors json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(body, &e) != nil || len(e.Errors) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(e.Errors, &s) == nil {
		return s
	}
	return string(e.Errors)
}

// Normalize converts every order, its refunds, and its customer.
func Normalize(feed *Feed) *adapters.Batch {
	batch := adapters.NewBatch(name)
	for _, o := range feed.Orders {
		order, err := NormalizeOrder(o)
		if err != nil {
			batch.Skip(o.ID.String(), err)
			continue
		}
		batch.Orders = append(batch.Orders, order)

		for _, r := range o.Refunds {
			refund, ok, err := NormalizeRefund(o, r)
			if err != nil {
				batch.Skip(r.ID.String(), err)
				continue
			}
			if ok {
				batch.Refunds = append(batch.Refunds, refund)
			}
		}
		if o.Customer != nil {
			if c, err := NormalizeCustomer(*o.Customer, order.Currency); err == nil {
				batch.AddCustomer(c)
			}
		}
	}
	return batch
}

// NormalizeOrder maps an order. The subtotal is the pre-discount line item
// total.
func NormalizeOrder(o Order) (models.NormalizedOrder, error) {
	if o.ID == "" {
		return models.NormalizedOrder{}, adapters.Missing("id")
	}
	created, err := adapters.ParseTime(o.CreatedAt)
	if err != nil {
		return models.NormalizedOrder{}, err
	}
	currency := money.NormalizeCurrency(o.Currency)

	total, err := money.ParseDecimal(o.TotalPrice, currency)
	if err != nil {
		return models.NormalizedOrder{}, adapters.Invalid("total_price", err)
	}
	discounts, err := money.ParseOptionalDecimal(o.TotalDiscounts, currency)
	if err != nil {
		return models.NormalizedOrder{}, adapters.Invalid("total_discounts", err)
	}
	var subtotal money.Money
	if o.TotalLineItemsPrice != "" {
		subtotal, err = money.ParseDecimal(o.TotalLineItemsPrice, currency)
	} else {
		subtotal, err = money.ParseOptionalDecimal(o.SubtotalPrice, currency)
		subtotal.Minor += discounts.Minor
	}
	if err != nil {
		return models.NormalizedOrder{}, adapters.Invalid("subtotal", err)
	}

	items := 0
	for _, li := range o.LineItems {
		items += li.Quantity
	}

	order := models.NormalizedOrder{
		Provider:        name,
		ID:              o.ID.String(),
		CreatedAt:       created,
		TotalPrice:      total.Minor,
		Subtotal:        subtotal.Minor,
		TotalDiscounts:  discounts.Minor,
		LineItemCount:   items,
		FinancialStatus: statuses.Map(o.FinancialStatus),
		Currency:        currency,
	}
	if o.Customer != nil {
		order.CustomerID = adapters.OptionalID(o.Customer.ID.String())
	}
	if o.CancelledAt != nil && *o.CancelledAt != "" {
		cancelled, err := adapters.ParseTime(*o.CancelledAt)
		if err != nil {
			return models.NormalizedOrder{}, adapters.Invalid("cancelled_at", err)
		}
		order.CancelledAt = &cancelled
	}
	return order, nil
}

// NormalizeRefund sums the successful refund transactions of r. Refunds that
// moved no money (restock-only) report ok=false.
func NormalizeRefund(o Order, r Refund) (models.NormalizedRefund, bool, error) {
	if r.ID == "" {
		return models.NormalizedRefund{}, false, adapters.Missing("refund id")
	}
	created, err := adapters.ParseTime(r.CreatedAt)
	if err != nil {
		return models.NormalizedRefund{}, false, err
	}
	currency := money.NormalizeCurrency(o.Currency)

	var amount int64
	for _, tx := range r.Transactions {
		if tx.Kind != "refund" || tx.Status != "success" {
			continue
		}
		m, err := money.ParseDecimal(tx.Amount, currency)
		if err != nil {
			return models.NormalizedRefund{}, false, adapters.Invalid("refund amount", err)
		}
		amount += m.Minor
	}
	if amount == 0 {
		return models.NormalizedRefund{}, false, nil
	}
	return models.NormalizedRefund{
		Provider:  name,
		ID:        r.ID.String(),
		CreatedAt: created,
		OrderID:   o.ID.String(),
		Amount:    amount,
		Currency:  currency,
	}, true, nil
}

// NormalizeCustomer maps the customer embedded in an order.
func NormalizeCustomer(c Customer, currency string) (models.NormalizedCustomer, error) {
	if c.ID == "" {
		return models.NormalizedCustomer{}, adapters.Missing("customer id")
	}
	created, err := adapters.ParseTime(c.CreatedAt)
	if err != nil {
		return models.NormalizedCustomer{}, err
	}
	if c.Currency != "" {
		currency = c.Currency
	}
	currency = money.NormalizeCurrency(currency)
	spent, err := money.ParseOptionalDecimal(c.TotalSpent, currency)
	if err != nil {
		return models.NormalizedCustomer{}, adapters.Invalid("total_spent", err)
	}
	return models.NormalizedCustomer{
		Provider:    name,
		ID:          c.ID.String(),
		CreatedAt:   created,
		OrdersCount: c.OrdersCount,
		TotalSpent:  spent.Minor,
		Currency:    currency,
	}, nil
}
