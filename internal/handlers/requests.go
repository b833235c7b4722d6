package handlers

import (
	"encoding/json"
	"time"

	"revattest/internal/models"
	"revattest/internal/repositories"
	"revattest/internal/services/attest"
	"revattest/internal/services/ingest"
	"revattest/internal/validation"
)

// RecordsPayload carries normalized records in a request body.
type RecordsPayload struct {
	Orders    []models.NormalizedOrder    `json:"orders"`
	Refunds   []models.NormalizedRefund   `json:"refunds"`
	Customers []models.NormalizedCustomer `json:"customers"`
}

func (p RecordsPayload) records() repositories.Records {
	return repositories.Records{Orders: p.Orders, Refunds: p.Refunds, Customers: p.Customers}
}

// WindowParams scopes a KPI computation. A nil Now means the server clock.
type WindowParams struct {
	Timezone        string     `json:"timezone"`
	WindowDays      int        `json:"window_days"`
	PriorWindowDays int        `json:"prior_window_days"`
	Currency        string     `json:"currency"`
	Now             *time.Time `json:"now"`
}

// KPIRequest is the body of POST /kpis.
type KPIRequest struct {
	RecordsPayload
	WindowParams
}

// AttestationRequest is the body of POST /attestations.
type AttestationRequest struct {
	RecordsPayload
	WindowParams
	MerchantID  string `json:"merchant_id"`
	PlatformID  string `json:"platform_id"`
	PreviousCID string `json:"previous_cid"`
}

// StoredAttestationRequest is the body of POST /merchants/:merchantId/attestations.
type StoredAttestationRequest struct {
	WindowParams
	PlatformID  string `json:"platform_id"`
	PreviousCID string `json:"previous_cid"`
}

// VerifyRequest is the body of POST /attestations/verify.
// The attestation is kept as submitted so that fields outside the schema
// reach the verifier.
type VerifyRequest struct {
	Attestation json.RawMessage `json:"attestation"`
	Hash        string          `json:"hash"`
}

// IngestRequest is the body of POST /merchants/:merchantId/ingest. Without
// connections the server's roster entry for the merchant is used.
type IngestRequest struct {
	Connections []ingest.Connection `json:"connections"`
	Start       time.Time           `json:"start"`
	End         time.Time           `json:"end"`
}

func attestRequest(merchantID, platformID, previousCID string, w WindowParams, now time.Time) attest.Request {
	if w.Now != nil {
		now = *w.Now
	}
	return attest.Request{
		MerchantID:      merchantID,
		PlatformID:      platformID,
		Timezone:        w.Timezone,
		Currency:        w.Currency,
		WindowDays:      w.WindowDays,
		PriorWindowDays: w.PriorWindowDays,
		Now:             now,
		PreviousCID:     previousCID,
	}
}

func (w WindowParams) validate(v *validation.Validator) {
	v.Window(w.Timezone, w.WindowDays, w.PriorWindowDays)
	v.Currency("currency", w.Currency)
}
