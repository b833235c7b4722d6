package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"revattest/internal/adapters"
	apperrors "revattest/internal/errors"
	"revattest/internal/models"
	"revattest/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) SaveRecords(ctx context.Context, records repositories.Records) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockRepo) Orders(ctx context.Context, merchantID string, from, to time.Time) ([]models.NormalizedOrder, error) {
	args := m.Called(ctx, merchantID, from, to)
	return args.Get(0).([]models.NormalizedOrder), args.Error(1)
}

func (m *MockRepo) Refunds(ctx context.Context, merchantID string, from, to time.Time) ([]models.NormalizedRefund, error) {
	args := m.Called(ctx, merchantID, from, to)
	return args.Get(0).([]models.NormalizedRefund), args.Error(1)
}

func (m *MockRepo) Customers(ctx context.Context, merchantID string) ([]models.NormalizedCustomer, error) {
	args := m.Called(ctx, merchantID)
	return args.Get(0).([]models.NormalizedCustomer), args.Error(1)
}

func (m *MockRepo) Load(ctx context.Context, merchantID string, from, to time.Time) (repositories.Records, error) {
	args := m.Called(ctx, merchantID, from, to)
	return args.Get(0).(repositories.Records), args.Error(1)
}

type stubAdapter struct {
	name  string
	batch *adapters.Batch
	err   error
	calls *int32
	seen  *adapters.Request
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Fetch(ctx context.Context, req adapters.Request) (*adapters.Batch, error) {
	if s.calls != nil {
		atomic.AddInt32(s.calls, 1)
	}
	if s.seen != nil {
		*s.seen = req
	}
	return s.batch, s.err
}

var (
	start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
)

func TestIngest_ReportsEveryProvider(t *testing.T) {
	shopifyBatch := &adapters.Batch{
		Provider: "shopify",
		Orders:   []models.NormalizedOrder{{Provider: "shopify", ID: "1", TotalPrice: 1000, Currency: "USD"}},
		Skipped:  []adapters.Skip{{RecordID: "2", Reason: "missing created_at"}},
		Pages:    2,
	}
	stripeBatch := &adapters.Batch{
		Provider: "stripe",
		Orders:   []models.NormalizedOrder{{Provider: "stripe", ID: "ch_1", TotalPrice: 500, Currency: "USD"}},
		Refunds:  []models.NormalizedRefund{{Provider: "stripe", ID: "re_1", Amount: 100, Currency: "USD"}},
		Pages:    1,
		Partial:  true,
	}
	var seen adapters.Request
	adaptersByName := map[string]adapters.Adapter{
		"shopify": &stubAdapter{name: "shopify", batch: shopifyBatch, seen: &seen},
		"stripe":  &stubAdapter{name: "stripe", batch: stripeBatch, err: apperrors.NewProviderError("stripe", "list charges", context.DeadlineExceeded)},
		"square":  &stubAdapter{name: "square", err: apperrors.StatusError("square", "list payments", 401, "UNAUTHORIZED")},
	}
	factory := func(name string, opts adapters.Options) (adapters.Adapter, error) {
		a, ok := adaptersByName[name]
		if !ok {
			return nil, apperrors.Wrap(apperrors.ErrUnknownProvider, "%q", name)
		}
		return a, nil
	}

	repo := new(MockRepo)
	repo.On("SaveRecords", mock.Anything, mock.MatchedBy(func(r repositories.Records) bool {
		for _, o := range r.Orders {
			if o.MerchantID != "m-1" {
				return false
			}
		}
		return len(r.Orders) == 2 && len(r.Refunds) == 1 && r.Refunds[0].MerchantID == "m-1"
	})).Return(nil)

	svc := NewService(repo, Config{Factory: factory})
	reports, err := svc.Ingest(context.Background(), "m-1", []Connection{
		{Provider: "shopify", Credential: "tok", Params: map[string]string{"shop_domain": "acme"}},
		{Provider: "stripe", Credential: "sk"},
		{Provider: "square", Credential: "sq"},
		{Provider: "etsy", Credential: "x"},
	}, start, end)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	repo.AssertExpectations(t)

	assert.Equal(t, "acme", seen.Param("shop_domain"))
	assert.Equal(t, "m-1", seen.MerchantID)
	assert.Equal(t, start, seen.Start)

	assert.Equal(t, 1, reports[0].Orders)
	assert.Len(t, reports[0].Skipped, 1)
	assert.Equal(t, 2, reports[0].Pages)
	assert.NoError(t, reports[0].Err)

	assert.Equal(t, 1, reports[1].Refunds)
	assert.True(t, reports[1].Partial)
	assert.Equal(t, "CANCELLED", reports[1].Code)

	assert.Equal(t, "UPSTREAM_401", reports[2].Code)
	assert.True(t, reports[2].Partial)

	assert.Equal(t, "UNKNOWN_PROVIDER", reports[3].Code)
	assert.True(t, Failed(reports))
}

func TestIngest_SaveFailure(t *testing.T) {
	factory := func(name string, opts adapters.Options) (adapters.Adapter, error) {
		return &stubAdapter{name: name, batch: adapters.NewBatch(name)}, nil
	}
	repo := new(MockRepo)
	repo.On("SaveRecords", mock.Anything, mock.Anything).Return(errors.New("db down"))

	svc := NewService(repo, Config{Factory: factory})
	reports, err := svc.Ingest(context.Background(), "m-1", []Connection{{Provider: "toast"}}, start, end)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Len(t, reports, 1)
	assert.False(t, Failed(reports))
}

func TestIngest_MissingMerchant(t *testing.T) {
	svc := NewService(new(MockRepo), Config{})
	_, err := svc.Ingest(context.Background(), "", nil, start, end)
	assert.ErrorIs(t, err, apperrors.ErrMissingMerchant)
}

type mapStore struct {
	data map[string]*adapters.Batch
}

func (m *mapStore) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	*dest.(*adapters.Batch) = *b
	return true, nil
}

func (m *mapStore) GenerateKey(namespace, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", namespace, keyType, value)
}

func (m *mapStore) Set(ctx context.Context, key string, value interface{}) error {
	return m.SetWithTTL(ctx, key, value, 0)
}

func (m *mapStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapStore) SetWithTTL(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.data[key] = value.(*adapters.Batch)
	return nil
}

func TestIngest_UsesBatchCache(t *testing.T) {
	var calls int32
	factory := func(name string, opts adapters.Options) (adapters.Adapter, error) {
		return &stubAdapter{name: name, batch: adapters.NewBatch(name), calls: &calls}, nil
	}
	repo := new(MockRepo)
	repo.On("SaveRecords", mock.Anything, mock.Anything).Return(nil)

	store := &mapStore{data: map[string]*adapters.Batch{}}
	svc := NewService(repo, Config{Factory: factory, Cache: store, CacheTTL: time.Hour})
	conns := []Connection{{Provider: "bigcommerce", Credential: "x"}}

	for i := 0; i < 2; i++ {
		_, err := svc.Ingest(context.Background(), "m-1", conns, start, end)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Len(t, store.data, 1)
}

func TestIngest_ReusesAdapters(t *testing.T) {
	var built []string
	factory := func(name string, opts adapters.Options) (adapters.Adapter, error) {
		if name == "nope" {
			built = append(built, name)
			return nil, apperrors.Wrap(apperrors.ErrUnknownProvider, "%q", name)
		}
		built = append(built, name+"@"+opts.BaseURL)
		return &stubAdapter{name: name, batch: adapters.NewBatch(name)}, nil
	}
	repo := new(MockRepo)
	repo.On("SaveRecords", mock.Anything, mock.Anything).Return(nil)

	svc := NewService(repo, Config{Factory: factory})
	conns := []Connection{
		{Provider: "shopify", Credential: "x"},
		{Provider: "shopify", Credential: "y", BaseURL: "http://mock"},
		{Provider: "nope"},
	}
	for i := 0; i < 2; i++ {
		_, err := svc.Ingest(context.Background(), "m-1", conns[i:i+1], start, end)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := svc.Ingest(context.Background(), "m-2", conns, start, end)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"shopify@", "shopify@http://mock", "nope", "nope"}, built)
}
