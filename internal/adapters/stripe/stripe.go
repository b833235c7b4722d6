// Package stripe normalizes Stripe charges, refunds, and lost disputes.
// Amounts arrive in minor units and pass through unchanged.
package stripe

import (
	"context"
	"errors"
	"time"

	"revattest/internal/adapters"
	apperrors "revattest/internal/errors"
	"revattest/internal/models"
	"revattest/internal/money"

	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

const (
	name     = models.ProviderStripe
	pageSize = 100
)

var chargeStatuses = models.StatusMap{
	"succeeded": models.StatusPaid,
	"pending":   models.StatusPending,
	"failed":    models.StatusFailed,
}

// Feed is the raw Stripe data for one window.
type Feed struct {
	Charges []*stripego.Charge
	Refunds []*stripego.Refund
	Pages   int
}

// Adapter fetches from the Stripe API with the secret key as credential.
type Adapter struct {
	*adapters.Base
}

func New(opts adapters.Options) *Adapter {
	return &Adapter{Base: adapters.NewBase(name, stripego.APIURL, opts)}
}

func (a *Adapter) api(key string) *client.API {
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(a.BaseURL()),
		HTTPClient:        a.HTTPClient(),
		MaxNetworkRetries: stripego.Int64(int64(a.MaxRetries())),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelError},
	})
	return client.New(key, &stripego.Backends{API: backend, Connect: backend, Uploads: backend})
}

func (a *Adapter) Fetch(ctx context.Context, req adapters.Request) (*adapters.Batch, error) {
	ctx, span := a.StartSpan(ctx, "fetch", req)
	defer span.End()

	feed, err := a.FetchRaw(ctx, req)
	return a.Finish(Normalize(feed), feed.Pages, err)
}

// FetchRaw lists charges and refunds created in [req.Start, req.End).
// The returned feed is never nil and holds whatever was read before an error.
func (a *Adapter) FetchRaw(ctx context.Context, req adapters.Request) (*Feed, error) {
	feed := &Feed{}
	if err := a.RequireCredential(req); err != nil {
		return feed, err
	}
	api := a.api(req.Credential)
	created := &stripego.RangeQueryParams{
		GreaterThanOrEqual: req.Start.Unix(),
		LesserThan:         req.End.Unix(),
	}
	limit := int64(a.PageSize(pageSize))

	chargeParams := &stripego.ChargeListParams{CreatedRange: created}
	chargeParams.Context = ctx
	chargeParams.Limit = stripego.Int64(limit)
	chargeParams.AddExpand("data.dispute")

	pager := a.Paginator("list charges")
	iter := api.Charges.List(chargeParams)
	for {
		if n := len(feed.Charges); n%int(limit) == 0 && (n == 0 || iter.Meta().HasMore) {
			if err := a.nextPage(ctx, pager, lastCharge(feed.Charges)); err != nil {
				feed.Pages += pager.Pages()
				return feed, err
			}
		}
		if !iter.Next() {
			break
		}
		feed.Charges = append(feed.Charges, iter.Charge())
	}
	feed.Pages += pager.Pages()
	if err := iter.Err(); err != nil {
		return feed, a.tagError("list charges", err)
	}

	refundParams := &stripego.RefundListParams{CreatedRange: created}
	refundParams.Context = ctx
	refundParams.Limit = stripego.Int64(limit)

	pager = a.Paginator("list refunds")
	riter := api.Refunds.List(refundParams)
	for {
		if n := len(feed.Refunds); n%int(limit) == 0 && (n == 0 || riter.Meta().HasMore) {
			if err := a.nextPage(ctx, pager, lastRefund(feed.Refunds)); err != nil {
				feed.Pages += pager.Pages()
				return feed, err
			}
		}
		if !riter.Next() {
			break
		}
		feed.Refunds = append(feed.Refunds, riter.Refund())
	}
	feed.Pages += pager.Pages()
	if err := riter.Err(); err != nil {
		return feed, a.tagError("list refunds", err)
	}
	return feed, nil
}

// nextPage runs before every page the SDK iterator is about to request.
// The starting_after cursor is the last ID read.
func (a *Adapter) nextPage(ctx context.Context, pager *adapters.Paginator, cursor string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewProviderError(name, "fetch", err)
	}
	if err := pager.Next(cursor); err != nil {
		return err
	}
	return a.Wait(ctx)
}

func (a *Adapter) tagError(op string, err error) error {
	var serr *stripego.Error
	if errors.As(err, &serr) && serr.HTTPStatusCode != 0 {
		return apperrors.StatusError(name, op, serr.HTTPStatusCode, serr.Msg)
	}
	return apperrors.NewProviderError(name, op, err)
}

func lastCharge(cs []*stripego.Charge) string {
	if len(cs) == 0 {
		return ""
	}
	return cs[len(cs)-1].ID
}

func lastRefund(rs []*stripego.Refund) string {
	if len(rs) == 0 {
		return ""
	}
	return rs[len(rs)-1].ID
}

// Normalize converts a feed. Lost disputes become chargeback refunds.
func Normalize(feed *Feed) *adapters.Batch {
	batch := adapters.NewBatch(name)
	for _, ch := range feed.Charges {
		order, err := NormalizeCharge(ch)
		if err != nil {
			batch.Skip(ch.ID, err)
			continue
		}
		batch.Orders = append(batch.Orders, order)
		if cb, ok := Chargeback(ch); ok {
			batch.Refunds = append(batch.Refunds, cb)
		}
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

// ChargeStatus maps a charge onto the closed status set. Fully refunded
// charges are refunded and uncaptured successes are still pending.
func ChargeStatus(ch *stripego.Charge) models.FinancialStatus {
	status := chargeStatuses.Map(string(ch.Status))
	if status != models.StatusPaid {
		return status
	}
	switch {
	case ch.Refunded:
		return models.StatusRefunded
	case !ch.Captured:
		return models.StatusPending
	}
	return status
}

// NormalizeCharge maps a charge to an order. Stripe has no line items or
// discounts at the charge level, so the subtotal is the charged amount.
func NormalizeCharge(ch *stripego.Charge) (models.NormalizedOrder, error) {
	if ch.ID == "" {
		return models.NormalizedOrder{}, adapters.Missing("id")
	}
	if ch.Created == 0 {
		return models.NormalizedOrder{}, adapters.Missing("created")
	}

	order := models.NormalizedOrder{
		Provider:        name,
		ID:              ch.ID,
		CreatedAt:       time.Unix(ch.Created, 0).UTC(),
		TotalPrice:      ch.Amount,
		Subtotal:        ch.Amount,
		LineItemCount:   1,
		FinancialStatus: ChargeStatus(ch),
		Currency:        money.NormalizeCurrency(string(ch.Currency)),
	}
	if ch.Customer != nil {
		order.CustomerID = adapters.OptionalID(ch.Customer.ID)
	}
	return order, nil
}

// Chargeback returns the refund entry for a charge whose dispute was lost.
func Chargeback(ch *stripego.Charge) (models.NormalizedRefund, bool) {
	d := ch.Dispute
	if d == nil || string(d.Status) != "lost" {
		return models.NormalizedRefund{}, false
	}
	created := d.Created
	if created == 0 {
		created = ch.Created
	}
	currency := string(d.Currency)
	if currency == "" {
		currency = string(ch.Currency)
	}
	return models.NormalizedRefund{
		Provider:   name,
		ID:         d.ID,
		CreatedAt:  time.Unix(created, 0).UTC(),
		OrderID:    ch.ID,
		Amount:     d.Amount,
		Currency:   money.NormalizeCurrency(currency),
		Chargeback: true,
	}, true
}

// NormalizeRefund maps a refund. Failed and canceled refunds never moved
// money and are rejected.
func NormalizeRefund(r *stripego.Refund) (models.NormalizedRefund, error) {
	if r.ID == "" {
		return models.NormalizedRefund{}, adapters.Missing("id")
	}
	if r.Created == 0 {
		return models.NormalizedRefund{}, adapters.Missing("created")
	}
	switch string(r.Status) {
	case "failed", "canceled":
		return models.NormalizedRefund{}, apperrors.Wrap(apperrors.ErrMalformedRecord, "refund status %s", r.Status)
	}

	refund := models.NormalizedRefund{
		Provider:  name,
		ID:        r.ID,
		CreatedAt: time.Unix(r.Created, 0).UTC(),
		Amount:    r.Amount,
		Currency:  money.NormalizeCurrency(string(r.Currency)),
	}
	if r.Charge != nil {
		refund.OrderID = r.Charge.ID
	}
	return refund, nil
}
