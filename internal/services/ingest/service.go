// Package ingest pulls a merchant's records from every connected provider
// and stores them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"revattest/internal/adapters"
	"revattest/internal/adapters/registry"
	"revattest/internal/config"
	apperrors "revattest/internal/errors"
	"revattest/internal/repositories"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Connection is one provider account of a merchant.
type Connection struct {
	Provider   string            `json:"provider"`
	Credential string            `json:"credential"`
	Params     map[string]string `json:"params,omitempty"`
	BaseURL    string            `json:"base_url,omitempty"`
}

// Report is the outcome of one provider's fetch. Err is set when the
// provider failed; records collected before the failure are still saved.
type Report struct {
	Provider  string          `json:"provider"`
	Orders    int             `json:"orders"`
	Refunds   int             `json:"refunds"`
	Customers int             `json:"customers"`
	Skipped   []adapters.Skip `json:"skipped,omitempty"`
	Pages     int             `json:"pages"`
	Partial   bool            `json:"partial"`
	Err       error           `json:"-"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
}

// Factory builds an adapter by provider name.
type Factory func(name string, opts adapters.Options) (adapters.Adapter, error)

// Config wires the service's collaborators. Cache may be nil.
type Config struct {
	Options  adapters.Options
	Cache    adapters.BatchStore
	CacheTTL time.Duration
	Factory  Factory
	Logger   *slog.Logger
}

// AdapterOptions maps process configuration to adapter transport options.
func AdapterOptions(cfg config.Config, logger *slog.Logger) adapters.Options {
	return adapters.Options{
		HTTPClient: &http.Client{Timeout: cfg.AdapterTimeout},
		MaxPages:   cfg.AdapterMaxPages,
		RateLimit:  rate.Limit(cfg.AdapterRatePerSec),
		MaxRetries: cfg.AdapterRetries,
		Logger:     logger,
	}
}

// Service keeps one adapter per provider and base URL, so rate limiters and
// circuit breakers carry over between ingest runs.
type Service struct {
	repo    repositories.RecordRepository
	opts    adapters.Options
	cache   adapters.BatchStore
	ttl     time.Duration
	factory Factory
	logger  *slog.Logger

	mu       sync.Mutex
	adapters map[string]adapters.Adapter
}

func NewService(repo repositories.RecordRepository, cfg Config) *Service {
	if repo == nil {
		panic("repo is required")
	}
	if cfg.Factory == nil {
		cfg.Factory = registry.New
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		opts:    cfg.Options,
		cache:   cfg.Cache,
		ttl:     cfg.CacheTTL,
		factory: cfg.Factory,
		logger:  cfg.Logger,

		adapters: make(map[string]adapters.Adapter),
	}
}

// adapter returns the shared adapter for conn, building it on first use.
// Construction failures are not remembered.
func (s *Service) adapter(conn Connection) (adapters.Adapter, error) {
	key := conn.Provider + "|" + conn.BaseURL

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.adapters[key]; ok {
		return a, nil
	}

	opts := s.opts
	if conn.BaseURL != "" {
		opts.BaseURL = conn.BaseURL
	}
	a, err := s.factory(conn.Provider, opts)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		a = adapters.WithCache(a, s.cache, s.ttl)
	}
	s.adapters[key] = a
	return a, nil
}

// Ingest fetches [start, end) from every connection concurrently. One
// provider failing never cancels the others; its Report carries the error.
// The returned error is non-nil only when storing records fails.
func (s *Service) Ingest(ctx context.Context, merchantID string, conns []Connection, start, end time.Time) ([]Report, error) {
	if merchantID == "" {
		return nil, apperrors.ErrMissingMerchant
	}

	reports := make([]Report, len(conns))
	batches := make([]*adapters.Batch, len(conns))

	var g errgroup.Group
	for i, conn := range conns {
		g.Go(func() error {
			reports[i], batches[i] = s.fetch(ctx, merchantID, conn, start, end)
			return nil
		})
	}
	_ = g.Wait()

	var records repositories.Records
	for _, b := range batches {
		if b == nil {
			continue
		}
		b.Stamp(merchantID)
		records.Orders = append(records.Orders, b.Orders...)
		records.Refunds = append(records.Refunds, b.Refunds...)
		records.Customers = append(records.Customers, b.Customers...)
	}
	if err := s.repo.SaveRecords(ctx, records); err != nil {
		return reports, fmt.Errorf("save records for %s: %w", merchantID, err)
	}
	return reports, nil
}

func (s *Service) fetch(ctx context.Context, merchantID string, conn Connection, start, end time.Time) (Report, *adapters.Batch) {
	report := Report{Provider: conn.Provider}
	logger := s.logger.With("merchant_id", merchantID, "provider", conn.Provider)

	adapter, err := s.adapter(conn)
	if err != nil {
		report.fail(err)
		logger.Error("adapter unavailable", "error", err)
		return report, nil
	}

	batch, err := adapter.Fetch(ctx, adapters.Request{
		MerchantID: merchantID,
		Credential: conn.Credential,
		Start:      start,
		End:        end,
		Params:     conn.Params,
	})
	if batch != nil {
		report.Orders = len(batch.Orders)
		report.Refunds = len(batch.Refunds)
		report.Customers = len(batch.Customers)
		report.Skipped = batch.Skipped
		report.Pages = batch.Pages
		report.Partial = batch.Partial
	}
	if err != nil {
		report.fail(err)
		report.Partial = true
	}

	logger.Info("ingest finished",
		"orders", report.Orders, "refunds", report.Refunds,
		"skipped", len(report.Skipped), "partial", report.Partial, "error", report.Error)
	return report, batch
}

func (r *Report) fail(err error) {
	r.Err = err
	r.Error = err.Error()
	r.Code = apperrors.CodeOf(err)
	if r.Code == "" {
		if pe, ok := apperrors.AsProviderError(err); ok && pe.StatusCode != 0 {
			r.Code = fmt.Sprintf("UPSTREAM_%d", pe.StatusCode)
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			r.Code = "CANCELLED"
		}
	}
}

// Failed reports whether any provider failed.
func Failed(reports []Report) bool {
	for _, r := range reports {
		if r.Err != nil {
			return true
		}
	}
	return false
}
