// Package adapters holds the shared machinery for provider adapters:
// request and batch types, the retrying transport, the pagination guard,
// and the batch cache. Each provider lives in its own sub-package and turns
// its raw feed into canonical records.
package adapters

import (
	"context"
	"time"

	"revattest/internal/models"
)

// Request scopes a fetch to one merchant, credential, and window.
// Credential is opaque to the adapters; Params carries provider
// identifiers such as a store domain or restaurant GUID.
type Request struct {
	MerchantID string
	Credential string
	Start      time.Time
	End        time.Time
	Params     map[string]string
}

// Param returns a provider identifier or "".
func (r Request) Param(key string) string {
	if r.Params == nil {
		return ""
	}
	return r.Params[key]
}

// Skip records a raw record that could not be normalized.
type Skip struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// Batch is the normalized output of one provider fetch.
type Batch struct {
	Provider  string                      `json:"provider"`
	Orders    []models.NormalizedOrder    `json:"orders"`
	Refunds   []models.NormalizedRefund   `json:"refunds"`
	Customers []models.NormalizedCustomer `json:"customers"`
	Skipped   []Skip                      `json:"skipped"`
	Pages     int                         `json:"pages"`
	Partial   bool                        `json:"partial"`
}

// NewBatch returns an empty batch for provider.
func NewBatch(provider string) *Batch {
	return &Batch{Provider: provider}
}

// Skip appends a skip entry.
func (b *Batch) Skip(recordID string, err error) {
	b.Skipped = append(b.Skipped, Skip{RecordID: recordID, Reason: err.Error()})
}

// Stamp sets the owning merchant on every record.
func (b *Batch) Stamp(merchantID string) {
	for i := range b.Orders {
		b.Orders[i].MerchantID = merchantID
	}
	for i := range b.Refunds {
		b.Refunds[i].MerchantID = merchantID
	}
	for i := range b.Customers {
		b.Customers[i].MerchantID = merchantID
	}
}

// AddCustomer appends c unless a customer with the same ID is present.
func (b *Batch) AddCustomer(c models.NormalizedCustomer) {
	for _, existing := range b.Customers {
		if existing.ID == c.ID {
			return
		}
	}
	b.Customers = append(b.Customers, c)
}

// Adapter fetches a merchant's raw feed from one provider and normalizes it.
// A non-nil batch may accompany an error; it then holds what was collected
// before the failure and is marked Partial.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, req Request) (*Batch, error)
}
