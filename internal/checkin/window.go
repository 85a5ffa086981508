package checkin

import "time"

// WindowPolicy selects how long the at-most-once rule holds.
type WindowPolicy int

const (
	// Daily allows one check-in per subject and scope per local calendar day.
	Daily WindowPolicy = iota
	// Unbounded allows one check-in per subject and scope, ever.
	Unbounded
)

// Window is the time boundary of the duplicate rule. It is deployment
// configuration, not a per-record attribute.
type Window struct {
	Policy   WindowPolicy
	Location *time.Location
}

// NewWindow parses a policy name ("daily" or "unbounded", defaulting to
// daily) and binds the daily window to loc.
func NewWindow(policy string, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	w := Window{Policy: Daily, Location: loc}
	if policy == "unbounded" {
		w.Policy = Unbounded
	}
	return w
}

// Bounds returns the half-open [start, end) interval containing asOf, or
// bounded=false for the unbounded policy. Daily windows roll over at local
// midnight.
func (w Window) Bounds(asOf time.Time) (start, end time.Time, bounded bool) {
	if w.Policy == Unbounded {
		return time.Time{}, time.Time{}, false
	}
	local := asOf.In(w.Location)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, w.Location)
	return start, start.AddDate(0, 0, 1), true
}
