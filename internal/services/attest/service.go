// Package attest turns stored or supplied records into sealed attestations.
package attest

import (
	"context"
	"fmt"
	"time"

	"revattest/internal/attestation"
	"revattest/internal/kpi"
	"revattest/internal/models"
	"revattest/internal/repositories"
)

// Request scopes one attestation.
type Request struct {
	MerchantID      string    `json:"merchant_id"`
	PlatformID      string    `json:"platform_id,omitempty"`
	Timezone        string    `json:"timezone,omitempty"`
	Currency        string    `json:"currency,omitempty"`
	WindowDays      int       `json:"window_days,omitempty"`
	PriorWindowDays int       `json:"prior_window_days,omitempty"`
	Now             time.Time `json:"now"`
	PreviousCID     string    `json:"previous_cid,omitempty"`
}

// Result is a built document with everything needed to publish or verify it.
type Result struct {
	Attestation *models.AttestationV1 `json:"attestation"`
	Hash        string                `json:"hash"`
	Canonical   string                `json:"canonical"`
	KPIs        models.KPIResult      `json:"kpis"`
}

// Input maps req and records to a KPI engine input.
func Input(records repositories.Records, req Request) kpi.Input {
	return kpi.Input{
		Orders:          records.Orders,
		Refunds:         records.Refunds,
		Customers:       records.Customers,
		Timezone:        req.Timezone,
		WindowDays:      req.WindowDays,
		PriorWindowDays: req.PriorWindowDays,
		Currency:        req.Currency,
		Now:             req.Now,
	}
}

// FromRecords computes KPIs over records, then builds and seals the
// document. The build clock is req.Now, so the same inputs always produce
// the same hash.
func FromRecords(records repositories.Records, req Request) (*Result, error) {
	kpis := kpi.Compute(Input(records, req))
	return seal(kpis, req)
}

func seal(kpis models.KPIResult, req Request) (*Result, error) {
	opts := []attestation.Option{attestation.WithClock(func() time.Time { return req.Now })}
	if req.PreviousCID != "" {
		opts = append(opts, attestation.WithPreviousCID(req.PreviousCID))
	}
	doc, err := attestation.Build(kpis, attestation.Merchant{ID: req.MerchantID, PlatformID: req.PlatformID}, opts...)
	if err != nil {
		return nil, err
	}
	sealed, err := attestation.Seal(doc)
	if err != nil {
		return nil, err
	}
	return &Result{
		Attestation: doc,
		Hash:        sealed.Hash,
		Canonical:   sealed.Canonical,
		KPIs:        kpis,
	}, nil
}

// RecordLoader reads a merchant's records for a time range.
type RecordLoader interface {
	Load(ctx context.Context, merchantID string, from, to time.Time) (repositories.Records, error)
}

type Service struct {
	records RecordLoader
	now     func() time.Time
}

func NewService(records RecordLoader) *Service {
	return &Service{records: records, now: time.Now}
}

// FromStore loads the current and prior windows from storage and attests
// them. A zero req.Now means the current time.
func (s *Service) FromStore(ctx context.Context, req Request) (*Result, error) {
	if req.Now.IsZero() {
		req.Now = s.now()
	}
	from, to := loadRange(req)
	records, err := s.records.Load(ctx, req.MerchantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return FromRecords(records, req)
}

// loadRange covers the window and its prior window, one day wider on the
// early side so timezone offsets never clip a record.
func loadRange(req Request) (time.Time, time.Time) {
	days := req.WindowDays
	if days <= 0 {
		days = kpi.DefaultWindowDays
	}
	return req.Now.AddDate(0, 0, -(days + req.PriorWindowDays + 1)), req.Now
}

// Month is one calendar month of a chain.
type Month struct {
	Start time.Time
	End   time.Time
}

// Months returns the count calendar months ending with the month before
// end's, oldest first, in loc.
func Months(end time.Time, count int, loc *time.Location) []Month {
	end = end.In(loc)
	first := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, loc)
	months := make([]Month, 0, count)
	for i := count; i >= 1; i-- {
		start := first.AddDate(0, -i, 0)
		months = append(months, Month{Start: start, End: start.AddDate(0, 1, 0)})
	}
	return months
}

// Chain attests each month in order, linking every document to the address
// publish returned for the previous one.
func (s *Service) Chain(ctx context.Context, req Request, months []Month, publish attestation.Publisher) ([]attestation.Sealed, error) {
	if len(months) == 0 {
		return nil, nil
	}
	records, err := s.records.Load(ctx, req.MerchantID, months[0].Start, months[len(months)-1].End)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}

	periods := make([]attestation.Period, 0, len(months))
	for _, m := range months {
		in := Input(records, req)
		in.Now = m.End
		in.WindowDays = int(m.End.Sub(m.Start).Round(24*time.Hour) / (24 * time.Hour))
		in.PriorWindowDays = 0
		end := m.End
		periods = append(periods, attestation.Period{
			KPIs:    kpi.Compute(in),
			Options: []attestation.Option{attestation.WithClock(func() time.Time { return end })},
		})
	}
	merchant := attestation.Merchant{ID: req.MerchantID, PlatformID: req.PlatformID}
	return attestation.BuildChain(ctx, merchant, periods, publish, req.PreviousCID)
}
