package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const batchNamespace = "batch"

// BatchStore is the subset of the cache service the batch cache needs.
type BatchStore interface {
	GenerateKey(namespace, keyType string, value interface{}) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedAdapter serves repeated fetches of a closed window from a store.
// Windows that end in the future always go to the provider, and partial
// batches are never cached. A zero ttl uses the store's default.
type CachedAdapter struct {
	Adapter
	store BatchStore
	ttl   time.Duration
	now   func() time.Time
}

// WithCache wraps a with a batch cache.
func WithCache(a Adapter, store BatchStore, ttl time.Duration) *CachedAdapter {
	return &CachedAdapter{Adapter: a, store: store, ttl: ttl, now: time.Now}
}

// Key identifies the closed fetch window of req for one merchant.
func (c *CachedAdapter) Key(req Request) string {
	return c.store.GenerateKey(batchNamespace, c.Name(),
		fmt.Sprintf("%s:%d:%d", req.MerchantID, req.Start.Unix(), req.End.Unix()))
}

func (c *CachedAdapter) Fetch(ctx context.Context, req Request) (*Batch, error) {
	if req.End.After(c.now()) {
		return c.Adapter.Fetch(ctx, req)
	}

	key := c.Key(req)
	var cached Batch
	found, err := c.store.Get(ctx, key, &cached)
	switch {
	case err != nil:
		// Unreadable entries are evicted and refetched.
		slog.Warn("batch cache read failed", "provider", c.Name(), "key", key, "error", err)
		if err := c.store.Delete(ctx, key); err != nil {
			slog.Warn("batch cache evict failed", "provider", c.Name(), "key", key, "error", err)
		}
	case found:
		return &cached, nil
	}

	batch, err := c.Adapter.Fetch(ctx, req)
	if err != nil || batch == nil || batch.Partial {
		return batch, err
	}
	if err := c.put(ctx, key, batch); err != nil {
		slog.Warn("batch cache write failed", "provider", c.Name(), "key", key, "error", err)
	}
	return batch, nil
}

func (c *CachedAdapter) put(ctx context.Context, key string, batch *Batch) error {
	if c.ttl <= 0 {
		return c.store.Set(ctx, key, batch)
	}
	return c.store.SetWithTTL(ctx, key, batch, c.ttl)
}
