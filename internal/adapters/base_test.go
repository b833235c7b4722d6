package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "revattest/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func testBase(url string) *Base {
	return NewBase("testprov", url, Options{RateLimit: rate.Inf, Backoff: time.Millisecond})
}

func TestBase_DoDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		w.Header().Set("Link", "next")
		_, _ = w.Write([]byte(`{"amount": 12.50}`))
	}))
	defer srv.Close()

	b := testBase(srv.URL)
	var out struct {
		Amount json.Number `json:"amount"`
	}
	resp, err := b.Do(context.Background(), Call{
		Op:     "get",
		URL:    srv.URL + "/x",
		Header: http.Header{"X-Token": []string{"secret"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "12.50", out.Amount.String())
	assert.Equal(t, "next", resp.Header.Get("Link"))
}

func TestBase_DoTagsStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"token revoked"}`))
	}))
	defer srv.Close()

	b := testBase(srv.URL)
	_, err := b.Do(context.Background(), Call{
		Op:  "list orders",
		URL: srv.URL,
		ErrorMessage: func(body []byte) string {
			var e struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(body, &e)
			return e.Error
		},
	}, nil)
	require.Error(t, err)

	pe, ok := apperrors.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "testprov", pe.Provider)
	assert.Equal(t, http.StatusForbidden, pe.StatusCode)
	assert.Equal(t, "token revoked", pe.Message)
	assert.False(t, pe.Retryable())
}

func TestBase_DoMalformedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders": [`))
	}))
	defer srv.Close()

	b := testBase(srv.URL)
	var out map[string]interface{}
	_, err := b.Do(context.Background(), Call{Op: "get", URL: srv.URL}, &out)
	assert.True(t, errors.Is(err, apperrors.ErrMalformedPayload))
}

func TestBase_FinishMarksPartial(t *testing.T) {
	b := testBase("http://example.invalid")
	batch := NewBatch("")
	batch.Skip("r1", apperrors.Wrap(apperrors.ErrMalformedRecord, "missing id"))

	out, err := b.Finish(batch, 2, context.Canceled)
	require.Error(t, err)
	assert.True(t, out.Partial)
	assert.Equal(t, "testprov", out.Provider)
	assert.Equal(t, 2, out.Pages)
	assert.True(t, errors.Is(err, context.Canceled))

	pe, ok := apperrors.AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, "testprov", pe.Provider)
}

func TestBase_RequireParam(t *testing.T) {
	b := testBase("")
	_, err := b.RequireParam(Request{}, "shop_domain")
	assert.True(t, errors.Is(err, apperrors.ErrMissingParam))

	v, err := b.RequireParam(Request{Params: map[string]string{"shop_domain": "acme.myshopify.com"}}, "shop_domain")
	require.NoError(t, err)
	assert.Equal(t, "acme.myshopify.com", v)

	assert.True(t, errors.Is(b.RequireCredential(Request{}), apperrors.ErrMissingCredential))
}
