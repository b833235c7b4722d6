package adapters

import (
	"fmt"
	"strings"
	"time"

	apperrors "revattest/internal/errors"
)

// ParseTime parses value with the first layout that fits; RFC 3339 is
// always tried. Results are in UTC.
func ParseTime(value string, layouts ...string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperrors.Wrap(apperrors.ErrMalformedRecord, "missing timestamp")
	}
	for _, layout := range append(layouts, time.RFC3339Nano) {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperrors.Wrap(apperrors.ErrMalformedRecord, "timestamp %q", value)
}

// OptionalID returns nil for empty or zero identifiers, which providers use
// for guest checkouts.
func OptionalID(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" || id == "0" {
		return nil
	}
	return &id
}

// Missing builds the normalization error for an absent required field.
func Missing(field string) error {
	return apperrors.Wrap(apperrors.ErrMalformedRecord, "missing %s", field)
}

// Invalid builds the normalization error for an unparsable field.
func Invalid(field string, err error) error {
	return apperrors.Wrap(apperrors.ErrMalformedRecord, "%s: %v", field, err)
}

// RefundEntryID names an order-shaped refund synthesized from a parent record.
func RefundEntryID(parentID, refundID string) string {
	if refundID == "" {
		return fmt.Sprintf("%s:refund", parentID)
	}
	return fmt.Sprintf("%s:refund:%s", parentID, refundID)
}
