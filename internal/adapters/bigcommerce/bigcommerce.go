// Package bigcommerce normalizes orders from the BigCommerce v2 orders API.
// Money arrives as four-decimal strings; refunded amounts are synthesized
// as negative orders.
package bigcommerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"revattest/internal/adapters"
	"revattest/internal/models"
	"revattest/internal/money"
)

const (
	name     = models.ProviderBigCommerce
	baseURL  = "https://api.bigcommerce.com"
	pageSize = 250
)

var statuses = models.StatusMap{
	"incomplete":                   models.StatusPending,
	"pending":                      models.StatusPending,
	"awaiting payment":             models.StatusPending,
	"manual verification required": models.StatusPending,
	"disputed":                     models.StatusPending,
	"awaiting fulfillment":         models.StatusPaid,
	"awaiting shipment":            models.StatusPaid,
	"awaiting pickup":              models.StatusPaid,
	"partially shipped":            models.StatusPaid,
	"shipped":                      models.StatusPaid,
	"completed":                    models.StatusPaid,
	"partially refunded":           models.StatusPaid,
	"refunded":                     models.StatusRefunded,
	"cancelled":                    models.StatusVoided,
	"declined":                     models.StatusFailed,
}

// Order is the subset of a BigCommerce v2 order the adapter reads.
type Order struct {
	ID             json.Number `json:"id"`
	DateCreated    string      `json:"date_created"`
	DateModified   string      `json:"date_modified"`
	Status         string      `json:"status"`
	SubtotalExTax  string      `json:"subtotal_ex_tax"`
	TotalIncTax    string      `json:"total_inc_tax"`
	DiscountAmount string      `json:"discount_amount"`
	CouponDiscount string      `json:"coupon_discount"`
	ItemsTotal     int         `json:"items_total"`
	CustomerID     json.Number `json:"customer_id"`
	CurrencyCode   string      `json:"currency_code"`
	RefundedAmount string      `json:"refunded_amount"`
}

// Feed is the raw BigCommerce data for one window.
type Feed struct {
	Orders []Order
	Pages  int
}

// Adapter reads orders with an API account access token. Request params
// must carry store_hash.
type Adapter struct {
	*adapters.Base
}

func New(opts adapters.Options) *Adapter {
	return &Adapter{Base: adapters.NewBase(name, baseURL, opts)}
}

func (a *Adapter) Fetch(ctx context.Context, req adapters.Request) (*adapters.Batch, error) {
	ctx, span := a.StartSpan(ctx, "fetch", req)
	defer span.End()

	feed, err := a.FetchRaw(ctx, req)
	return a.Finish(Normalize(feed), feed.Pages, err)
}

// FetchRaw requests numbered pages until the API answers 204 or a short
// page.
func (a *Adapter) FetchRaw(ctx context.Context, req adapters.Request) (*Feed, error) {
	feed := &Feed{}
	if err := a.RequireCredential(req); err != nil {
		return feed, err
	}
	store, err := a.RequireParam(req, "store_hash")
	if err != nil {
		return feed, err
	}

	header := http.Header{}
	header.Set("X-Auth-Token", req.Credential)

	size := a.PageSize(pageSize)
	pager := a.Paginator("list orders")
	defer func() { feed.Pages = pager.Pages() }()

	for page := 1; ; page++ {
		if err := pager.Next(strconv.Itoa(page)); err != nil {
			return feed, err
		}
		q := url.Values{}
		q.Set("min_date_created", req.Start.UTC().Format(time.RFC3339))
		q.Set("max_date_created", req.End.Add(-time.Second).UTC().Format(time.RFC3339))
		q.Set("sort", "date_created:asc")
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(size))

		var orders []Order
		resp, err := a.Do(ctx, adapters.Call{
			Op:           "list orders",
			URL:          a.BaseURL() + "/stores/" + url.PathEscape(store) + "/v2/orders?" + q.Encode(),
			Header:       header,
			ErrorMessage: errorMessage,
		}, &orders)
		if err != nil {
			return feed, err
		}
		if resp.StatusCode == http.StatusNoContent {
			return feed, nil
		}
		feed.Orders = append(feed.Orders, orders...)
		if len(orders) < size {
			return feed, nil
		}
	}
}

func errorMessage(body []byte) string {
	var list []struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &list) == nil && len(list) > 0 {
		return list[0].Message
	}
	var single struct {
		Title string `json:"title"`
	}
	_ = json.Unmarshal(body, &single)
	return single.Title
}

// Normalize converts every order and synthesizes refunded amounts.
func Normalize(feed *Feed) *adapters.Batch {
	batch := adapters.NewBatch(name)
	for _, o := range feed.Orders {
		order, err := NormalizeOrder(o)
		if err != nil {
			batch.Skip(o.ID.String(), err)
			continue
		}
		batch.Orders = append(batch.Orders, order)

		entry, ok, err := RefundEntry(o, order)
		if err != nil {
			batch.Skip(adapters.RefundEntryID(order.ID, ""), err)
			continue
		}
		if ok {
			batch.Orders = append(batch.Orders, entry)
		}
	}
	return batch
}

// NormalizeOrder maps an order. Discounts combine manual discounts and
// coupons.
func NormalizeOrder(o Order) (models.NormalizedOrder, error) {
	if o.ID == "" {
		return models.NormalizedOrder{}, adapters.Missing("id")
	}
	created, err := adapters.ParseTime(o.DateCreated, time.RFC1123Z)
	if err != nil {
		return models.NormalizedOrder{}, err
	}
	currency := money.NormalizeCurrency(o.CurrencyCode)

	var parseErr error
	parse := func(field, value string) int64 {
		if parseErr != nil {
			return 0
		}
		m, err := money.ParseOptionalDecimal(value, currency)
		if err != nil {
			parseErr = adapters.Invalid(field, err)
		}
		return m.Minor
	}
	subtotal := parse("subtotal_ex_tax", o.SubtotalExTax)
	total := parse("total_inc_tax", o.TotalIncTax)
	discounts := parse("discount_amount", o.DiscountAmount) + parse("coupon_discount", o.CouponDiscount)
	if parseErr != nil {
		return models.NormalizedOrder{}, parseErr
	}

	return models.NormalizedOrder{
		Provider:        name,
		ID:              o.ID.String(),
		CreatedAt:       created,
		TotalPrice:      total,
		Subtotal:        subtotal,
		TotalDiscounts:  discounts,
		LineItemCount:   o.ItemsTotal,
		FinancialStatus: statuses.Map(o.Status),
		CustomerID:      adapters.OptionalID(o.CustomerID.String()),
		Currency:        currency,
	}, nil
}

// RefundEntry builds the negative order for an order's refunded amount,
// dated by the order's last modification.
func RefundEntry(o Order, parent models.NormalizedOrder) (models.NormalizedOrder, bool, error) {
	refunded, err := money.ParseOptionalDecimal(o.RefundedAmount, parent.Currency)
	if err != nil {
		return models.NormalizedOrder{}, false, adapters.Invalid("refunded_amount", err)
	}
	if !refunded.IsPositive() {
		return models.NormalizedOrder{}, false, nil
	}
	created := parent.CreatedAt
	if o.DateModified != "" {
		if created, err = adapters.ParseTime(o.DateModified, time.RFC1123Z); err != nil {
			return models.NormalizedOrder{}, false, err
		}
	}
	return models.NormalizedOrder{
		Provider:        name,
		ID:              adapters.RefundEntryID(parent.ID, ""),
		CreatedAt:       created,
		TotalPrice:      -refunded.Minor,
		Subtotal:        -refunded.Minor,
		FinancialStatus: models.StatusRefunded,
		CustomerID:      parent.CustomerID,
		Currency:        parent.Currency,
	}, true, nil
}
