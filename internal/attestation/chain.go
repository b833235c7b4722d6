package attestation

import (
	"context"
	"fmt"

	"revattest/internal/models"
)

// Sealed is a built document with its canonical text, hash, and address.
type Sealed struct {
	Document  *models.AttestationV1 `json:"document"`
	Canonical string                `json:"canonical"`
	Hash      string                `json:"hash"`
	CID       string                `json:"cid"`
}

// Publisher stores a sealed document and returns its content address.
type Publisher func(ctx context.Context, s Sealed) (string, error)

// LocalPublisher addresses documents by LocalCID without storing them.
func LocalPublisher(_ context.Context, s Sealed) (string, error) {
	return LocalCID(s.Canonical), nil
}

// Seal serializes and hashes doc.
func Seal(doc *models.AttestationV1) (Sealed, error) {
	canonical, err := Serialize(doc)
	if err != nil {
		return Sealed{}, err
	}
	return Sealed{
		Document:  doc,
		Canonical: canonical,
		Hash:      HashCanonical(canonical),
	}, nil
}

// Period is one link of a chain: the KPIs for a window and any per-period
// build options.
type Period struct {
	KPIs    models.KPIResult
	Options []Option
}

// BuildChain builds periods in order. Each document after the first carries
// the address publish returned for its predecessor. The chain stops at the
// first failure and returns what was sealed so far.
func BuildChain(ctx context.Context, merchant Merchant, periods []Period, publish Publisher, previousCID string) ([]Sealed, error) {
	if publish == nil {
		publish = LocalPublisher
	}
	chain := make([]Sealed, 0, len(periods))
	prev := previousCID
	for i, p := range periods {
		if err := ctx.Err(); err != nil {
			return chain, err
		}

		opts := append([]Option{}, p.Options...)
		if prev != "" {
			opts = append(opts, WithPreviousCID(prev))
		}
		doc, err := Build(p.KPIs, merchant, opts...)
		if err != nil {
			return chain, fmt.Errorf("period %d: %w", i, err)
		}
		sealed, err := Seal(doc)
		if err != nil {
			return chain, fmt.Errorf("period %d: %w", i, err)
		}
		cid, err := publish(ctx, sealed)
		if err != nil {
			return chain, fmt.Errorf("publish period %d: %w", i, err)
		}
		sealed.CID = cid
		chain = append(chain, sealed)
		prev = cid
	}
	return chain, nil
}

// CheckLink reports whether next points at prev's address.
func CheckLink(prev, next Sealed) error {
	if next.Document == nil || next.Document.PreviousCID != prev.CID {
		got := ""
		if next.Document != nil {
			got = next.Document.PreviousCID
		}
		return fmt.Errorf("broken chain: previousCid %q, want %q", got, prev.CID)
	}
	return nil
}
