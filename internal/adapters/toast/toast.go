// Package toast normalizes restaurant orders from the Toast orders API.
// Amounts are major-unit JSON numbers; refunds hang off check payments and
// are synthesized as negative orders.
package toast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"revattest/internal/adapters"
	"revattest/internal/models"
	"revattest/internal/money"

	"github.com/shopspring/decimal"
)

const (
	name       = models.ProviderToast
	baseURL    = "https://ws-api.toasttab.com"
	pageSize   = 100
	timeLayout = "2006-01-02T15:04:05.000-0700"
)

// Order is the subset of a Toast order the adapter reads.
type Order struct {
	GUID         string  `json:"guid"`
	CreatedDate  string  `json:"createdDate"`
	OpenedDate   string  `json:"openedDate"`
	ModifiedDate string  `json:"modifiedDate"`
	Voided       bool    `json:"voided"`
	Deleted      bool    `json:"deleted"`
	Checks       []Check `json:"checks"`
}

type Check struct {
	GUID             string      `json:"guid"`
	Amount           json.Number `json:"amount"`
	TotalAmount      json.Number `json:"totalAmount"`
	PaymentStatus    string      `json:"paymentStatus"`
	Voided           bool        `json:"voided"`
	AppliedDiscounts []Discount  `json:"appliedDiscounts"`
	Selections       []Selection `json:"selections"`
	Payments         []Payment   `json:"payments"`
	Customer         *Customer   `json:"customer"`
}

type Discount struct {
	DiscountAmount json.Number `json:"discountAmount"`
}

type Selection struct {
	Quantity json.Number `json:"quantity"`
	Voided   bool        `json:"voided"`
}

type Payment struct {
	GUID         string  `json:"guid"`
	RefundStatus string  `json:"refundStatus"`
	Refund       *Refund `json:"refund"`
}

type Refund struct {
	RefundAmount json.Number `json:"refundAmount"`
	RefundDate   string      `json:"refundDate"`
}

type Customer struct {
	GUID string `json:"guid"`
}

// Feed is the raw Toast data for one window.
type Feed struct {
	Orders   []Order
	Currency string
	Pages    int
}

// Adapter reads orders with an API access token. Request params must carry
// restaurant_guid; currency is optional and defaults to USD.
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

// FetchRaw requests numbered pages until one comes back short.
func (a *Adapter) FetchRaw(ctx context.Context, req adapters.Request) (*Feed, error) {
	feed := &Feed{Currency: money.NormalizeCurrency(req.Param("currency"))}
	if err := a.RequireCredential(req); err != nil {
		return feed, err
	}
	restaurant, err := a.RequireParam(req, "restaurant_guid")
	if err != nil {
		return feed, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+req.Credential)
	header.Set("Toast-Restaurant-External-ID", restaurant)

	size := a.PageSize(pageSize)
	pager := a.Paginator("list orders")
	defer func() { feed.Pages = pager.Pages() }()

	for page := 1; ; page++ {
		if err := pager.Next(strconv.Itoa(page)); err != nil {
			return feed, err
		}
		q := url.Values{}
		q.Set("startDate", req.Start.UTC().Format(timeLayout))
		q.Set("endDate", req.End.UTC().Format(timeLayout))
		q.Set("page", strconv.Itoa(page))
		q.Set("pageSize", strconv.Itoa(size))

		var orders []Order
		if _, err := a.Do(ctx, adapters.Call{
			Op:           "list orders",
			URL:          a.BaseURL() + "/orders/v2/ordersBulk?" + q.Encode(),
			Header:       header,
			ErrorMessage: errorMessage,
		}, &orders); err != nil {
			return feed, err
		}
		feed.Orders = append(feed.Orders, orders...)
		if len(orders) < size {
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

// Normalize converts every order and synthesizes payment refunds.
func Normalize(feed *Feed) *adapters.Batch {
	batch := adapters.NewBatch(name)
	currency := money.NormalizeCurrency(feed.Currency)
	for _, o := range feed.Orders {
		order, err := NormalizeOrder(o, currency)
		if err != nil {
			batch.Skip(o.GUID, err)
			continue
		}
		batch.Orders = append(batch.Orders, order)

		for _, check := range o.Checks {
			for _, p := range check.Payments {
				entry, ok, err := RefundEntry(order, p)
				if err != nil {
					batch.Skip(adapters.RefundEntryID(o.GUID, p.GUID), err)
					continue
				}
				if ok {
					batch.Orders = append(batch.Orders, entry)
				}
			}
		}
	}
	return batch
}

// Status derives the order status from the void flags and the payment
// status of every check.
func Status(o Order) models.FinancialStatus {
	if o.Voided || o.Deleted {
		return models.StatusVoided
	}
	live := 0
	for _, c := range o.Checks {
		if c.Voided {
			continue
		}
		live++
		switch strings.ToUpper(c.PaymentStatus) {
		case "PAID", "CLOSED":
		default:
			return models.StatusPending
		}
	}
	if live == 0 {
		return models.StatusPending
	}
	return models.StatusPaid
}

// NormalizeOrder sums the order's live checks. Check amounts are net of
// discounts, so the subtotal adds the applied discounts back.
func NormalizeOrder(o Order, currency string) (models.NormalizedOrder, error) {
	if o.GUID == "" {
		return models.NormalizedOrder{}, adapters.Missing("guid")
	}
	createdAt := o.CreatedDate
	if createdAt == "" {
		createdAt = o.OpenedDate
	}
	created, err := adapters.ParseTime(createdAt, timeLayout)
	if err != nil {
		return models.NormalizedOrder{}, err
	}

	var net, total, discounts int64
	items := decimal.Zero
	var customer *string
	for _, c := range o.Checks {
		if c.Voided {
			continue
		}
		amount, err := money.ParseNumber(c.Amount, currency)
		if err != nil {
			return models.NormalizedOrder{}, adapters.Invalid("check amount", err)
		}
		checkTotal, err := money.ParseNumber(c.TotalAmount, currency)
		if err != nil {
			return models.NormalizedOrder{}, adapters.Invalid("check totalAmount", err)
		}
		net += amount.Minor
		total += checkTotal.Minor

		for _, d := range c.AppliedDiscounts {
			m, err := money.ParseNumber(d.DiscountAmount, currency)
			if err != nil {
				return models.NormalizedOrder{}, adapters.Invalid("discountAmount", err)
			}
			discounts += m.Minor
		}
		for _, s := range c.Selections {
			if s.Voided || s.Quantity == "" {
				continue
			}
			q, err := decimal.NewFromString(s.Quantity.String())
			if err != nil {
				return models.NormalizedOrder{}, adapters.Invalid("selection quantity", err)
			}
			items = items.Add(q)
		}
		if customer == nil && c.Customer != nil {
			customer = adapters.OptionalID(c.Customer.GUID)
		}
	}

	order := models.NormalizedOrder{
		Provider:        name,
		ID:              o.GUID,
		CreatedAt:       created,
		TotalPrice:      total,
		Subtotal:        net + discounts,
		TotalDiscounts:  discounts,
		LineItemCount:   int(items.Round(0).IntPart()),
		FinancialStatus: Status(o),
		CustomerID:      customer,
		Currency:        currency,
	}
	return order, nil
}

// RefundEntry builds the negative order for a refunded payment. Payments
// without a refund report ok=false.
func RefundEntry(parent models.NormalizedOrder, p Payment) (models.NormalizedOrder, bool, error) {
	if p.Refund == nil || strings.EqualFold(p.RefundStatus, "NONE") {
		return models.NormalizedOrder{}, false, nil
	}
	amount, err := money.ParseNumber(p.Refund.RefundAmount, parent.Currency)
	if err != nil {
		return models.NormalizedOrder{}, false, adapters.Invalid("refundAmount", err)
	}
	if amount.IsZero() {
		return models.NormalizedOrder{}, false, nil
	}
	created, err := adapters.ParseTime(p.Refund.RefundDate, timeLayout)
	if err != nil {
		return models.NormalizedOrder{}, false, err
	}
	minor := -amount.Abs().Minor
	return models.NormalizedOrder{
		Provider:        name,
		ID:              adapters.RefundEntryID(parent.ID, p.GUID),
		CreatedAt:       created,
		TotalPrice:      minor,
		Subtotal:        minor,
		FinancialStatus: models.StatusRefunded,
		CustomerID:      parent.CustomerID,
		Currency:        parent.Currency,
	}, true, nil
}
