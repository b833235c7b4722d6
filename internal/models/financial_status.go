package models

import (
	"encoding/json"
	"strings"
)

// FinancialStatus is the closed status vocabulary every provider maps into.
type FinancialStatus string

// Financial statuses
const (
	StatusPending  FinancialStatus = "pending"
	StatusPaid     FinancialStatus = "paid"
	StatusRefunded FinancialStatus = "refunded"
	StatusVoided   FinancialStatus = "voided"
	StatusFailed   FinancialStatus = "failed"
)

// ParseFinancialStatus maps a canonical status name to its value.
// Anything outside the closed set becomes StatusPending.
func ParseFinancialStatus(s string) FinancialStatus {
	switch FinancialStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusPaid:
		return StatusPaid
	case StatusRefunded:
		return StatusRefunded
	case StatusVoided:
		return StatusVoided
	case StatusFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Valid reports whether s is one of the closed set.
func (s FinancialStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusRefunded, StatusVoided, StatusFailed:
		return true
	}
	return false
}

// UnmarshalJSON accepts any string and folds unknown values to pending.
func (s *FinancialStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseFinancialStatus(raw)
	return nil
}

// StatusMap is a per-provider status table. Lookup is total: statuses the
// table does not name map to pending.
type StatusMap map[string]FinancialStatus

// Map returns the canonical status for a provider status.
func (m StatusMap) Map(providerStatus string) FinancialStatus {
	if s, ok := m[strings.ToLower(strings.TrimSpace(providerStatus))]; ok {
		return s
	}
	return StatusPending
}
