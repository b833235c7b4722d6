package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	apperrors "revattest/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Options configures an adapter's transport. Zero values take defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	MaxPages   int
	PageSize   int
	RateLimit  rate.Limit
	Burst      int
	MaxRetries int
	Backoff    time.Duration
	Logger     *slog.Logger
}

// Base provides common functionality for provider adapters.
type Base struct {
	name    string
	baseURL string
	opts    Options
	client  *Client
	limiter *rate.Limiter
	tracer  trace.Tracer
	logger  *slog.Logger
}

// NewBase creates a Base for provider, using defaultBaseURL unless
// opts.BaseURL overrides it.
func NewBase(provider, defaultBaseURL string, opts Options) *Base {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = rate.Limit(5)
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	baseURL := defaultBaseURL
	if opts.BaseURL != "" {
		baseURL = opts.BaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Base{
		name:    provider,
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		client:  NewClient(opts.HTTPClient, opts.MaxRetries, opts.Backoff, NewCircuitBreaker(provider, 5, 30*time.Second)),
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		tracer:  otel.Tracer("revattest/adapters"),
		logger:  logger.With("provider", provider),
	}
}

func (b *Base) Name() string {
	return b.name
}

// BaseURL returns the API root without a trailing slash.
func (b *Base) BaseURL() string {
	return b.baseURL
}

// PageSize returns the configured page size or def.
func (b *Base) PageSize(def int) int {
	if b.opts.PageSize > 0 {
		return b.opts.PageSize
	}
	return def
}

// MaxPages returns the pagination bound.
func (b *Base) MaxPages() int {
	return b.opts.MaxPages
}

// Paginator returns a fresh guard for one pagination loop.
func (b *Base) Paginator(op string) *Paginator {
	return NewPaginator(b.name, op, b.opts.MaxPages)
}

// HTTPClient returns the configured client for SDKs that bring their own
// transport.
func (b *Base) HTTPClient() *http.Client {
	if b.opts.HTTPClient != nil {
		return b.opts.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

// MaxRetries returns the configured retry count.
func (b *Base) MaxRetries() int {
	return b.opts.MaxRetries
}

// Wait blocks until the rate limiter admits one request.
func (b *Base) Wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return apperrors.NewProviderError(b.name, "rate limit", err)
	}
	return nil
}

// Logger returns the provider-scoped logger.
func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// StartSpan opens a tracing span for a fetch.
func (b *Base) StartSpan(ctx context.Context, op string, req Request) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, b.name+"."+op, trace.WithAttributes(
		attribute.String("provider", b.name),
		attribute.String("merchant_id", req.MerchantID),
	))
}

// Call describes one HTTP request to the provider.
type Call struct {
	Op     string
	Method string
	URL    string
	Header http.Header
	Body   interface{}
	// ErrorMessage extracts the provider's error text from a failure body.
	ErrorMessage func(body []byte) string
}

// Response carries the parts of an HTTP response pagination needs.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Do waits for the rate limiter, performs call, and decodes a 2xx body into
// dest. Failures come back as *errors.ProviderError.
func (b *Base) Do(ctx context.Context, call Call, dest interface{}) (*Response, error) {
	if err := b.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, span := b.tracer.Start(ctx, b.name+"."+call.Op)
	defer span.End()

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if call.Body != nil {
		data, err := json.Marshal(call.Body)
		if err != nil {
			return nil, apperrors.NewProviderError(b.name, call.Op, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return nil, apperrors.NewProviderError(b.name, call.Op, fmt.Errorf("create request: %w", err))
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.NewProviderError(b.name, call.Op, err)
	}
	defer resp.Body.Close()

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		msg := strings.TrimSpace(string(data))
		if call.ErrorMessage != nil {
			if m := call.ErrorMessage(data); m != "" {
				msg = m
			}
		}
		span.SetStatus(codes.Error, msg)
		return out, apperrors.StatusError(b.name, call.Op, resp.StatusCode, msg)
	}
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return out, nil
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return out, apperrors.NewProviderError(b.name, call.Op,
			fmt.Errorf("%w: %v", apperrors.ErrMalformedPayload, err))
	}
	return out, nil
}

// Finish stamps provider and page count onto batch and marks it partial
// when the fetch ended early. Cancellation errors are tagged with the
// provider so callers can tell which fetch was cut short.
func (b *Base) Finish(batch *Batch, pages int, err error) (*Batch, error) {
	batch.Provider = b.name
	batch.Pages = pages
	if err != nil {
		batch.Partial = true
		if _, ok := apperrors.AsProviderError(err); !ok {
			err = apperrors.NewProviderError(b.name, "fetch", err)
		}
		level := slog.LevelError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			level = slog.LevelWarn
		}
		b.logger.Log(context.Background(), level, "fetch ended early",
			"pages", pages, "orders", len(batch.Orders), "refunds", len(batch.Refunds), "error", err)
		return batch, err
	}
	b.logger.Info("fetch complete",
		"pages", pages, "orders", len(batch.Orders), "refunds", len(batch.Refunds),
		"customers", len(batch.Customers), "skipped", len(batch.Skipped))
	return batch, nil
}

// RequireCredential validates the opaque credential is present.
func (b *Base) RequireCredential(req Request) error {
	if strings.TrimSpace(req.Credential) == "" {
		return apperrors.NewProviderError(b.name, "fetch", apperrors.ErrMissingCredential)
	}
	return nil
}

// RequireParam validates a provider identifier is present.
func (b *Base) RequireParam(req Request, key string) (string, error) {
	v := strings.TrimSpace(req.Param(key))
	if v == "" {
		return "", apperrors.NewProviderError(b.name, "fetch", apperrors.Wrap(apperrors.ErrMissingParam, "%s", key))
	}
	return v, nil
}
