// Package woocommerce normalizes orders from the WooCommerce REST API (v3).
// WooCommerce has no refund listing by date, so refunds embedded in orders
// are synthesized as negative orders.
package woocommerce

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"revattest/internal/adapters"
	"revattest/internal/models"
	"revattest/internal/money"
)

const (
	name       = models.ProviderWooCommerce
	pageSize   = 100
	gmtLayout  = "2006-01-02T15:04:05"
	totalPages = "X-WP-TotalPages"
)

var statuses = models.StatusMap{
	"pending":        models.StatusPending,
	"on-hold":        models.StatusPending,
	"checkout-draft": models.StatusPending,
	"processing":     models.StatusPaid,
	"completed":      models.StatusPaid,
	"cancelled":      models.StatusVoided,
	"trash":          models.StatusVoided,
	"refunded":       models.StatusRefunded,
	"failed":         models.StatusFailed,
}

// Order is the subset of a WooCommerce order the adapter reads.
type Order struct {
	ID              json.Number `json:"id"`
	Status          string      `json:"status"`
	Currency        string      `json:"currency"`
	DateCreatedGMT  string      `json:"date_created_gmt"`
	DateModifiedGMT string      `json:"date_modified_gmt"`
	Total           string      `json:"total"`
	DiscountTotal   string      `json:"discount_total"`
	CustomerID      json.Number `json:"customer_id"`
	LineItems       []LineItem  `json:"line_items"`
	Refunds         []Refund    `json:"refunds"`
}

type LineItem struct {
	Quantity int    `json:"quantity"`
	Subtotal string `json:"subtotal"`
}

// Refund is the refund summary WooCommerce embeds in an order. Total is
// negative.
type Refund struct {
	ID    json.Number `json:"id"`
	Total string      `json:"total"`
}

// Feed is the raw WooCommerce data for one window.
type Feed struct {
	Orders []Order
	Pages  int
}

// Adapter reads orders with a "consumer_key:consumer_secret" credential.
// Request params must carry site_url.
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

// FetchRaw walks numbered pages until X-WP-TotalPages is reached.
func (a *Adapter) FetchRaw(ctx context.Context, req adapters.Request) (*Feed, error) {
	feed := &Feed{}
	if err := a.RequireCredential(req); err != nil {
		return feed, err
	}
	site, err := a.RequireParam(req, "site_url")
	if err != nil {
		return feed, err
	}
	root := a.BaseURL()
	if root == "" {
		root = strings.TrimRight(site, "/")
	}

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(req.Credential)))

	pager := a.Paginator("list orders")
	defer func() { feed.Pages = pager.Pages() }()

	for page := 1; ; page++ {
		if err := pager.Next(strconv.Itoa(page)); err != nil {
			return feed, err
		}
		q := url.Values{}
		q.Set("after", req.Start.UTC().Format(gmtLayout))
		q.Set("before", req.End.UTC().Format(gmtLayout))
		q.Set("dates_are_gmt", "true")
		q.Set("orderby", "date")
		q.Set("order", "asc")
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(a.PageSize(pageSize)))

		var orders []Order
		resp, err := a.Do(ctx, adapters.Call{
			Op:           "list orders",
			URL:          root + "/wp-json/wc/v3/orders?" + q.Encode(),
			Header:       header,
			ErrorMessage: errorMessage,
		}, &orders)
		if err != nil {
			return feed, err
		}
		feed.Orders = append(feed.Orders, orders...)

		total, _ := strconv.Atoi(resp.Header.Get(totalPages))
		if len(orders) == 0 || page >= total {
			return feed, nil
		}
	}
}

func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &e)
	return e.Message
}

// Normalize converts every order and synthesizes its refunds.
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
			entry, ok, err := RefundEntry(o, order, r)
			if err != nil {
				batch.Skip(adapters.RefundEntryID(o.ID.String(), r.ID.String()), err)
				continue
			}
			if ok {
				batch.Orders = append(batch.Orders, entry)
			}
		}
	}
	return batch
}

// NormalizeOrder maps an order. The subtotal is the sum of line item
// subtotals, which WooCommerce reports before coupons.
func NormalizeOrder(o Order) (models.NormalizedOrder, error) {
	if o.ID == "" {
		return models.NormalizedOrder{}, adapters.Missing("id")
	}
	created, err := adapters.ParseTime(o.DateCreatedGMT, gmtLayout)
	if err != nil {
		return models.NormalizedOrder{}, err
	}
	currency := money.NormalizeCurrency(o.Currency)

	total, err := money.ParseDecimal(o.Total, currency)
	if err != nil {
		return models.NormalizedOrder{}, adapters.Invalid("total", err)
	}
	discount, err := money.ParseOptionalDecimal(o.DiscountTotal, currency)
	if err != nil {
		return models.NormalizedOrder{}, adapters.Invalid("discount_total", err)
	}

	var subtotal int64
	items := 0
	for _, li := range o.LineItems {
		m, err := money.ParseOptionalDecimal(li.Subtotal, currency)
		if err != nil {
			return models.NormalizedOrder{}, adapters.Invalid("line_items.subtotal", err)
		}
		subtotal += m.Minor
		items += li.Quantity
	}

	return models.NormalizedOrder{
		Provider:        name,
		ID:              o.ID.String(),
		CreatedAt:       created,
		TotalPrice:      total.Minor,
		Subtotal:        subtotal,
		TotalDiscounts:  discount.Minor,
		LineItemCount:   items,
		FinancialStatus: statuses.Map(o.Status),
		CustomerID:      adapters.OptionalID(o.CustomerID.String()),
		Currency:        currency,
	}, nil
}

// RefundEntry builds the negative order for an embedded refund. Embedded
// refunds carry no date, so the order's last modification stands in.
// ok is false for zero refunds.
func RefundEntry(o Order, parent models.NormalizedOrder, r Refund) (models.NormalizedOrder, bool, error) {
	amount, err := money.ParseDecimal(r.Total, parent.Currency)
	if err != nil {
		return models.NormalizedOrder{}, false, adapters.Invalid("refund total", err)
	}
	if amount.IsZero() {
		return models.NormalizedOrder{}, false, nil
	}
	created := parent.CreatedAt
	if o.DateModifiedGMT != "" {
		if created, err = adapters.ParseTime(o.DateModifiedGMT, gmtLayout); err != nil {
			return models.NormalizedOrder{}, false, err
		}
	}
	minor := -amount.Abs().Minor
	return models.NormalizedOrder{
		Provider:        name,
		ID:              adapters.RefundEntryID(parent.ID, r.ID.String()),
		CreatedAt:       created,
		TotalPrice:      minor,
		Subtotal:        minor,
		FinancialStatus: models.StatusRefunded,
		CustomerID:      parent.CustomerID,
		Currency:        parent.Currency,
	}, true, nil
}
