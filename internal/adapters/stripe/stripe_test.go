package stripe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"revattest/internal/adapters"
	apperrors "revattest/internal/errors"
	"revattest/internal/models"

	stripego "github.com/stripe/stripe-go/v72"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNormalizeCharge(t *testing.T) {
	tests := []struct {
		name   string
		charge *stripego.Charge
		want   models.NormalizedOrder
	}{
		{
			name: "captured charge",
			charge: &stripego.Charge{
				ID: "ch_1", Amount: 5000, Created: jan1.Unix(), Currency: "usd",
				Status: "succeeded", Captured: true, Paid: true,
				Customer: &stripego.Customer{ID: "cus_1"},
			},
			want: models.NormalizedOrder{
				Provider: "stripe", ID: "ch_1", CreatedAt: jan1,
				TotalPrice: 5000, Subtotal: 5000, LineItemCount: 1,
				FinancialStatus: models.StatusPaid, CustomerID: strPtr("cus_1"), Currency: "USD",
			},
		},
		{
			name: "fully refunded",
			charge: &stripego.Charge{
				ID: "ch_2", Amount: 1999, Created: jan1.Unix(), Currency: "eur",
				Status: "succeeded", Captured: true, Refunded: true,
			},
			want: models.NormalizedOrder{
				Provider: "stripe", ID: "ch_2", CreatedAt: jan1,
				TotalPrice: 1999, Subtotal: 1999, LineItemCount: 1,
				FinancialStatus: models.StatusRefunded, Currency: "EUR",
			},
		},
		{
			name: "uncaptured authorization",
			charge: &stripego.Charge{
				ID: "ch_3", Amount: 700, Created: jan1.Unix(), Currency: "usd", Status: "succeeded",
			},
			want: models.NormalizedOrder{
				Provider: "stripe", ID: "ch_3", CreatedAt: jan1,
				TotalPrice: 700, Subtotal: 700, LineItemCount: 1,
				FinancialStatus: models.StatusPending, Currency: "USD",
			},
		},
		{
			name: "unknown status defaults to pending",
			charge: &stripego.Charge{
				ID: "ch_4", Amount: 100, Created: jan1.Unix(), Currency: "jpy", Status: "requires_review",
			},
			want: models.NormalizedOrder{
				Provider: "stripe", ID: "ch_4", CreatedAt: jan1,
				TotalPrice: 100, Subtotal: 100, LineItemCount: 1,
				FinancialStatus: models.StatusPending, Currency: "JPY",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCharge(tt.charge)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeCharge_MissingFields(t *testing.T) {
	_, err := NormalizeCharge(&stripego.Charge{Created: jan1.Unix()})
	assert.True(t, errors.Is(err, apperrors.ErrMalformedRecord))

	_, err = NormalizeCharge(&stripego.Charge{ID: "ch_1"})
	assert.True(t, errors.Is(err, apperrors.ErrMalformedRecord))
}

func TestNormalize_LostDisputeBecomesChargeback(t *testing.T) {
	feed := &Feed{
		Charges: []*stripego.Charge{
			{
				ID: "ch_1", Amount: 5000, Created: jan1.Unix(), Currency: "usd", Status: "succeeded", Captured: true,
				Dispute: &stripego.Dispute{ID: "dp_1", Amount: 5000, Currency: "usd", Created: jan1.Add(48 * time.Hour).Unix(), Status: "lost"},
			},
			{
				ID: "ch_2", Amount: 3000, Created: jan1.Unix(), Currency: "usd", Status: "succeeded", Captured: true,
				Dispute: &stripego.Dispute{ID: "dp_2", Amount: 3000, Currency: "usd", Status: "won"},
			},
			{Amount: 1},
		},
		Refunds: []*stripego.Refund{
			{ID: "re_1", Amount: 2000, Created: jan1.Add(time.Hour).Unix(), Currency: "usd", Status: "succeeded", Charge: &stripego.Charge{ID: "ch_2"}},
			{ID: "re_2", Amount: 500, Created: jan1.Unix(), Currency: "usd", Status: "failed"},
		},
	}

	batch := Normalize(feed)
	require.Len(t, batch.Orders, 2)
	require.Len(t, batch.Refunds, 2)
	assert.Len(t, batch.Skipped, 2)

	assert.Equal(t, models.NormalizedRefund{
		Provider: "stripe", ID: "dp_1", CreatedAt: jan1.Add(48 * time.Hour), OrderID: "ch_1",
		Amount: 5000, Currency: "USD", Chargeback: true,
	}, batch.Refunds[0])
	assert.Equal(t, models.NormalizedRefund{
		Provider: "stripe", ID: "re_1", CreatedAt: jan1.Add(time.Hour), OrderID: "ch_2",
		Amount: 2000, Currency: "USD",
	}, batch.Refunds[1])
}

func testAdapter(url string) *Adapter {
	return New(adapters.Options{BaseURL: url, RateLimit: rate.Inf})
}

func TestAdapter_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/charges":
			assert.Equal(t, "1704067200", r.URL.Query().Get("created[gte]"))
			_, _ = w.Write([]byte(`{"object":"list","url":"/v1/charges","has_more":false,"data":[
				{"id":"ch_1","object":"charge","amount":12550,"created":1704070800,"currency":"usd","status":"succeeded","captured":true,"paid":true,"customer":"cus_9"}
			]}`))
		case "/v1/refunds":
			_, _ = w.Write([]byte(`{"object":"list","url":"/v1/refunds","has_more":false,"data":[
				{"id":"re_1","object":"refund","amount":550,"created":1704074400,"currency":"usd","status":"succeeded","charge":"ch_1"}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	batch, err := testAdapter(srv.URL).Fetch(context.Background(), adapters.Request{
		MerchantID: "m1",
		Credential: "sk_test_123",
		Start:      jan1,
		End:        jan1.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "stripe", batch.Provider)
	assert.False(t, batch.Partial)
	assert.Equal(t, 2, batch.Pages)
	require.Len(t, batch.Orders, 1)
	assert.Equal(t, int64(12550), batch.Orders[0].TotalPrice)
	assert.Equal(t, "cus_9", *batch.Orders[0].CustomerID)
	require.Len(t, batch.Refunds, 1)
	assert.Equal(t, "ch_1", batch.Refunds[0].OrderID)
}

func TestAdapter_FetchTagsUpstreamErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`))
	}))
	defer srv.Close()

	batch, err := testAdapter(srv.URL).Fetch(context.Background(), adapters.Request{
		Credential: "sk_test_bad", Start: jan1, End: jan1.AddDate(0, 1, 0),
	})
	require.Error(t, err)
	assert.True(t, batch.Partial)

	pe, ok := apperrors.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "stripe", pe.Provider)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "Invalid API Key provided", pe.Message)
}

func TestAdapter_FetchRequiresCredential(t *testing.T) {
	_, err := testAdapter("http://127.0.0.1:0").Fetch(context.Background(), adapters.Request{Start: jan1, End: jan1})
	assert.True(t, errors.Is(err, apperrors.ErrMissingCredential))
}

func strPtr(s string) *string { return &s }
