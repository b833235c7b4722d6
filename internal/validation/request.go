package validation

import (
	"regexp"
	"strings"
	"time"

	"revattest/internal/adapters/registry"
)

// MaxWindowDays bounds a KPI window and its prior window.
const MaxWindowDays = 366

var currencyRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)

// Window checks KPI window parameters. Zero values mean defaults and pass.
func (v *Validator) Window(timezone string, windowDays, priorDays int) {
	if timezone != "" {
		_, err := time.LoadLocation(timezone)
		v.Check(err == nil, "timezone", "must be an IANA time zone name")
	}
	v.Range("window_days", windowDays, 0, MaxWindowDays)
	v.Range("prior_window_days", priorDays, 0, MaxWindowDays)
}

// Currency checks an optional ISO 4217 code.
func (v *Validator) Currency(field, code string) {
	if code != "" {
		v.Check(currencyRegex.MatchString(code), field, "must be a three-letter currency code")
	}
}

// Provider checks that name is a registered provider.
func (v *Validator) Provider(field, name string) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, known := range registry.Names() {
		if name == known {
			return
		}
	}
	v.AddError(field, "must be one of "+strings.Join(registry.Names(), ", "))
}
