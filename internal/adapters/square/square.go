// Package square normalizes Square payments and refunds. Money objects
// carry minor units with their currency.
package square

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"revattest/internal/adapters"
	apperrors "revattest/internal/errors"
	"revattest/internal/models"
	"revattest/internal/money"
)

const (
	name          = models.ProviderSquare
	baseURL       = "https://connect.squareup.com"
	squareVersion = "2024-01-18"
	pageSize      = 100
)

var paymentStatuses = models.StatusMap{
	"approved":  models.StatusPending,
	"pending":   models.StatusPending,
	"completed": models.StatusPaid,
	"canceled":  models.StatusVoided,
	"failed":    models.StatusFailed,
}

// Money is Square's amount/currency pair.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type Payment struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"created_at"`
	Status      string `json:"status"`
	AmountMoney *Money `json:"amount_money"`
	TotalMoney  *Money `json:"total_money"`
	OrderID     string `json:"order_id"`
	CustomerID  string `json:"customer_id"`
}

type Refund struct {
	ID          string `json:"id"`
	CreatedAt   string `json:"created_at"`
	Status      string `json:"status"`
	AmountMoney *Money `json:"amount_money"`
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
}

// Feed is the raw Square data for one window.
type Feed struct {
	Payments []Payment
	Refunds  []Refund
	Pages    int
}

// Adapter reads payments and refunds with an OAuth access token.
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

// FetchRaw lists payments, then refunds, following cursors.
func (a *Adapter) FetchRaw(ctx context.Context, req adapters.Request) (*Feed, error) {
	feed := &Feed{}
	if err := a.RequireCredential(req); err != nil {
		return feed, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+req.Credential)
	header.Set("Square-Version", squareVersion)

	pages, err := a.list(ctx, req, header, "payments", func(raw json.RawMessage) error {
		var ps []Payment
		if err := json.Unmarshal(raw, &ps); err != nil {
			return err
		}
		feed.Payments = append(feed.Payments, ps...)
		return nil
	})
	feed.Pages += pages
	if err != nil {
		return feed, err
	}

	pages, err = a.list(ctx, req, header, "refunds", func(raw json.RawMessage) error {
		var rs []Refund
		if err := json.Unmarshal(raw, &rs); err != nil {
			return err
		}
		feed.Refunds = append(feed.Refunds, rs...)
		return nil
	})
	feed.Pages += pages
	return feed, err
}

// list walks one cursor-paginated endpoint under /v2. collect receives the
// array stored under the resource key.
func (a *Adapter) list(ctx context.Context, req adapters.Request, header http.Header, resource string, collect func(json.RawMessage) error) (int, error) {
	op := "list " + resource
	pager := a.Paginator(op)

	cursor := ""
	for {
		if err := pager.Next(cursor); err != nil {
			return pager.Pages(), err
		}
		q := url.Values{}
		q.Set("begin_time", req.Start.UTC().Format(time.RFC3339))
		q.Set("end_time", req.End.UTC().Format(time.RFC3339))
		q.Set("sort_order", "ASC")
		q.Set("limit", strconv.Itoa(a.PageSize(pageSize)))
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var page map[string]json.RawMessage
		if _, err := a.Do(ctx, adapters.Call{
			Op:           op,
			URL:          a.BaseURL() + "/v2/" + resource + "?" + q.Encode(),
			Header:       header,
			ErrorMessage: errorMessage,
		}, &page); err != nil {
			return pager.Pages(), err
		}
		if raw, ok := page[resource]; ok {
			if err := collect(raw); err != nil {
				return pager.Pages(), apperrors.NewProviderError(name, op,
					apperrors.Wrap(apperrors.ErrMalformedPayload, "%v", err))
			}
		}

		cursor = ""
		if raw, ok := page["cursor"]; ok && string(raw) != "null" {
			if err := json.Unmarshal(raw, &cursor); err != nil {
				return pager.Pages(), apperrors.NewProviderError(name, op,
					apperrors.Wrap(apperrors.ErrMalformedPayload, "cursor: %v", err))
			}
		}
		if cursor == "" {
			return pager.Pages(), nil
		}
	}
}

func errorMessage(body []byte) string {
	var e struct {
		Errors []struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &e) != nil || len(e.Errors) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, item := range e.Errors {
		msgs = append(msgs, item.Code+": "+item.Detail)
	}
	return strings.Join(msgs, "; ")
}

// Normalize converts payments to orders and refunds to refunds.
func Normalize(feed *Feed) *adapters.Batch {
	batch := adapters.NewBatch(name)
	for _, p := range feed.Payments {
		order, err := NormalizePayment(p)
		if err != nil {
			batch.Skip(p.ID, err)
			continue
		}
		batch.Orders = append(batch.Orders, order)
	}
	for _, r := range feed.Refunds {
		refund, err := NormalizeRefund(r)
		if err != nil {
			batch.Skip(r.ID, err)
			continue
		}
		batch.Refunds = append(batch.Refunds, refund)
	}
	return batch
}

// NormalizePayment maps a payment. The subtotal is the amount before tips;
// the total includes them.
func NormalizePayment(p Payment) (models.NormalizedOrder, error) {
	if p.ID == "" {
		return models.NormalizedOrder{}, adapters.Missing("id")
	}
	if p.AmountMoney == nil {
		return models.NormalizedOrder{}, adapters.Missing("amount_money")
	}
	created, err := adapters.ParseTime(p.CreatedAt)
	if err != nil {
		return models.NormalizedOrder{}, err
	}
	total := p.AmountMoney.Amount
	if p.TotalMoney != nil {
		total = p.TotalMoney.Amount
	}
	return models.NormalizedOrder{
		Provider:        name,
		ID:              p.ID,
		CreatedAt:       created,
		TotalPrice:      total,
		Subtotal:        p.AmountMoney.Amount,
		LineItemCount:   1,
		FinancialStatus: paymentStatuses.Map(p.Status),
		CustomerID:      adapters.OptionalID(p.CustomerID),
		Currency:        money.NormalizeCurrency(p.AmountMoney.Currency),
	}, nil
}

// NormalizeRefund maps a refund. Rejected and failed refunds are skipped.
func NormalizeRefund(r Refund) (models.NormalizedRefund, error) {
	if r.ID == "" {
		return models.NormalizedRefund{}, adapters.Missing("id")
	}
	switch strings.ToUpper(r.Status) {
	case "REJECTED", "FAILED":
		return models.NormalizedRefund{}, apperrors.Wrap(apperrors.ErrMalformedRecord, "refund status %s", r.Status)
	}
	if r.AmountMoney == nil {
		return models.NormalizedRefund{}, adapters.Missing("amount_money")
	}
	created, err := adapters.ParseTime(r.CreatedAt)
	if err != nil {
		return models.NormalizedRefund{}, err
	}
	return models.NormalizedRefund{
		Provider:  name,
		ID:        r.ID,
		CreatedAt: created,
		OrderID:   r.PaymentID,
		Amount:    r.AmountMoney.Amount,
		Currency:  money.NormalizeCurrency(r.AmountMoney.Currency),
	}, nil
}
