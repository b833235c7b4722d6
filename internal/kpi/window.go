package kpi

import "time"

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Trailing returns the window of days calendar days ending at end. Days are
// counted in end's location, so a window spanning a DST change is not a
// multiple of 24 hours.
func Trailing(end time.Time, days int) Window {
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// Prior returns the window of days calendar days immediately before w.
func (w Window) Prior(days int) Window {
	return Trailing(w.Start, days)
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
