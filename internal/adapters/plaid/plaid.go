// Package plaid turns bank-account inflows reported by Plaid into orders.
// Plaid amounts are major-unit JSON numbers where positive means money
// leaving the account, so only negative amounts are revenue.
package plaid

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"revattest/internal/adapters"
	"revattest/internal/models"
	"revattest/internal/money"
)

const (
	name       = models.ProviderPlaid
	baseURL    = "https://production.plaid.com"
	pageSize   = 500
	dateLayout = "2006-01-02"
)

// ErrDebit marks outgoing transactions, which are skipped.
var ErrDebit = errors.New("debit is not revenue")

// Transaction is the subset of a Plaid transaction the adapter reads.
type Transaction struct {
	TransactionID          string      `json:"transaction_id"`
	AccountID              string      `json:"account_id"`
	Amount                 json.Number `json:"amount"`
	ISOCurrencyCode        string      `json:"iso_currency_code"`
	UnofficialCurrencyCode string      `json:"unofficial_currency_code"`
	Date                   string      `json:"date"`
	Datetime               *string     `json:"datetime"`
	Pending                bool        `json:"pending"`
	MerchantName           string      `json:"merchant_name"`
}

// Feed is the raw Plaid data for one window.
type Feed struct {
	Transactions []Transaction
	Pages        int
}

type getRequest struct {
	ClientID    string     `json:"client_id"`
	Secret      string     `json:"secret"`
	AccessToken string     `json:"access_token"`
	StartDate   string     `json:"start_date"`
	EndDate     string     `json:"end_date"`
	Options     getOptions `json:"options"`
}

type getOptions struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

type getResponse struct {
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
}

// Adapter reads transactions with an Item access token as credential.
// Request params must carry client_id and secret.
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

// FetchRaw pages through /transactions/get by offset. Plaid windows are
// whole dates; the end date is the last day before req.End.
func (a *Adapter) FetchRaw(ctx context.Context, req adapters.Request) (*Feed, error) {
	feed := &Feed{}
	if err := a.RequireCredential(req); err != nil {
		return feed, err
	}
	clientID, err := a.RequireParam(req, "client_id")
	if err != nil {
		return feed, err
	}
	secret, err := a.RequireParam(req, "secret")
	if err != nil {
		return feed, err
	}

	body := getRequest{
		ClientID:    clientID,
		Secret:      secret,
		AccessToken: req.Credential,
		StartDate:   req.Start.UTC().Format(dateLayout),
		EndDate:     req.End.Add(-1).UTC().Format(dateLayout),
		Options:     getOptions{Count: a.PageSize(pageSize)},
	}

	pager := a.Paginator("get transactions")
	defer func() { feed.Pages = pager.Pages() }()

	for {
		if err := pager.Next(strconv.Itoa(body.Options.Offset)); err != nil {
			return feed, err
		}
		var page getResponse
		if _, err := a.Do(ctx, adapters.Call{
			Op:           "get transactions",
			Method:       "POST",
			URL:          a.BaseURL() + "/transactions/get",
			Body:         body,
			ErrorMessage: errorMessage,
		}, &page); err != nil {
			return feed, err
		}
		feed.Transactions = append(feed.Transactions, page.Transactions...)
		body.Options.Offset += len(page.Transactions)

		if len(page.Transactions) == 0 || body.Options.Offset >= page.TotalTransactions {
			return feed, nil
		}
	}
}

func errorMessage(body []byte) string {
	var e struct {
		ErrorCode    string `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	}
	if json.Unmarshal(body, &e) != nil || e.ErrorMessage == "" {
		return ""
	}
	if e.ErrorCode != "" {
		return e.ErrorCode + ": " + e.ErrorMessage
	}
	return e.ErrorMessage
}

// Normalize converts inflows to orders and skips everything else.
func Normalize(feed *Feed) *adapters.Batch {
	batch := adapters.NewBatch(name)
	for _, tx := range feed.Transactions {
		order, err := NormalizeTransaction(tx)
		if err != nil {
			batch.Skip(tx.TransactionID, err)
			continue
		}
		batch.Orders = append(batch.Orders, order)
	}
	return batch
}

// NormalizeTransaction maps an inflow to a single-item order. Bank
// transactions carry no discounts or customers.
func NormalizeTransaction(tx Transaction) (models.NormalizedOrder, error) {
	if tx.TransactionID == "" {
		return models.NormalizedOrder{}, adapters.Missing("transaction_id")
	}
	currency := tx.ISOCurrencyCode
	if currency == "" {
		currency = tx.UnofficialCurrencyCode
	}
	currency = money.NormalizeCurrency(currency)

	amount, err := money.ParseNumber(tx.Amount, currency)
	if err != nil {
		return models.NormalizedOrder{}, adapters.Invalid("amount", err)
	}
	if !amount.IsNegative() {
		return models.NormalizedOrder{}, ErrDebit
	}

	var created string
	if tx.Datetime != nil && *tx.Datetime != "" {
		created = *tx.Datetime
	} else {
		created = tx.Date
	}
	at, err := adapters.ParseTime(created, dateLayout)
	if err != nil {
		return models.NormalizedOrder{}, err
	}

	status := models.StatusPaid
	if tx.Pending {
		status = models.StatusPending
	}
	inflow := amount.Abs().Minor
	return models.NormalizedOrder{
		Provider:        name,
		ID:              tx.TransactionID,
		CreatedAt:       at,
		TotalPrice:      inflow,
		Subtotal:        inflow,
		LineItemCount:   1,
		FinancialStatus: status,
		Currency:        currency,
	}, nil
}
