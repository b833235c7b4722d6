package toast

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"revattest/internal/adapters"
	"revattest/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNormalize_Golden(t *testing.T) {
	raw, err := os.ReadFile("testdata/orders.json")
	require.NoError(t, err)
	var orders []Order
	require.NoError(t, json.Unmarshal(raw, &orders))

	batch := Normalize(&Feed{Orders: orders})

	customer := "cust-1"
	require.Len(t, batch.Orders, 4)
	assert.Equal(t, models.NormalizedOrder{
		Provider:        "toast",
		ID:              "ord-1",
		CreatedAt:       time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC),
		TotalPrice:      6193,
		Subtotal:        6200,
		TotalDiscounts:  500,
		LineItemCount:   4,
		FinancialStatus: models.StatusPaid,
		CustomerID:      &customer,
		Currency:        "USD",
	}, batch.Orders[0])

	assert.Equal(t, models.NormalizedOrder{
		Provider:        "toast",
		ID:              "ord-1:refund:pay-1",
		CreatedAt:       time.Date(2024, 1, 6, 14, 15, 0, 0, time.UTC),
		TotalPrice:      -1050,
		Subtotal:        -1050,
		FinancialStatus: models.StatusRefunded,
		CustomerID:      &customer,
		Currency:        "USD",
	}, batch.Orders[1])

	voided := batch.Orders[2]
	assert.Equal(t, "ord-2", voided.ID)
	assert.Equal(t, models.StatusVoided, voided.FinancialStatus)
	assert.Equal(t, time.Date(2024, 1, 8, 2, 0, 0, 0, time.UTC), voided.CreatedAt)

	assert.Equal(t, models.StatusPending, batch.Orders[3].FinancialStatus)

	require.Len(t, batch.Skipped, 1)
	assert.Empty(t, batch.Refunds)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, models.StatusPending, Status(Order{}))
	assert.Equal(t, models.StatusVoided, Status(Order{Deleted: true}))
	assert.Equal(t, models.StatusPaid, Status(Order{Checks: []Check{
		{PaymentStatus: "PAID"}, {PaymentStatus: "OPEN", Voided: true},
	}}))
	assert.Equal(t, models.StatusPending, Status(Order{Checks: []Check{
		{PaymentStatus: "PAID"}, {PaymentStatus: "OPEN"},
	}}))
}

func TestAdapter_FetchStopsOnShortPage(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/v2/ordersBulk", r.URL.Path)
		assert.Equal(t, "rest-guid", r.Header.Get("Toast-Restaurant-External-ID"))
		assert.Equal(t, "2024-01-01T00:00:00.000+0000", r.URL.Query().Get("startDate"))

		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		order := `{"guid":"o-%s-%d","createdDate":"2024-01-02T00:00:00.000+0000","checks":[{"amount":1,"totalAmount":1,"paymentStatus":"PAID"}]}`
		n := 2
		if page == "2" {
			n = 1
		}
		items := make([]string, n)
		for i := range items {
			items[i] = fmt.Sprintf(order, page, i)
		}
		_, _ = w.Write([]byte("[" + strings.Join(items, ",") + "]"))
	}))
	defer srv.Close()

	a := New(adapters.Options{BaseURL: srv.URL, RateLimit: rate.Inf, PageSize: 2})
	batch, err := a.Fetch(context.Background(), adapters.Request{
		Credential: "token",
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Params:     map[string]string{"restaurant_guid": "rest-guid"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, pages)
	assert.Len(t, batch.Orders, 3)
}

func TestAdapter_FetchCancelledReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`[{"guid":"o1","createdDate":"2024-01-02T00:00:00.000+0000","checks":[{"amount":1,"totalAmount":1,"paymentStatus":"PAID"}]}]`))
			return
		}
		cancel()
		<-r.Context().Done()
	}))
	defer srv.Close()

	a := New(adapters.Options{BaseURL: srv.URL, RateLimit: rate.Inf, PageSize: 1})
	batch, err := a.Fetch(ctx, adapters.Request{
		Credential: "token",
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Params:     map[string]string{"restaurant_guid": "rest-guid"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, batch.Partial)
	assert.Len(t, batch.Orders, 1)
	assert.Equal(t, 2, batch.Pages)
}
