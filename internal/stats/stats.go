// Package stats recomputes report counters by folding over the full check-in
// record set. It is a batch view, recomputed on demand, and deliberately
// O(all records): volumes are event-scale.
package stats

import (
	"context"
	"strconv"
	"time"

	"checkin/internal/checkin"
)

// Stats is one report snapshot.
type Stats struct {
	Total          int            `json:"total"`
	Today          int            `json:"today"`
	ThisWeek       int            `json:"this_week"`
	PerScope       map[string]int `json:"per_scope"`
	PerHour        map[string]int `json:"per_hour"`
	PeakHour       string         `json:"peak_hour"`
	UniqueSubjects int            `json:"unique_subjects"`
	LastCheckin    *time.Time     `json:"last_checkin,omitempty"`
}

// UnknownScope buckets records with no scope value.
const UnknownScope = "Unknown"

// Compute folds the record set once. Today and ThisWeek are bounded by local
// midnight and local start of the ISO week (Monday) in loc. PerHour covers
// today's records only, keyed "0".."23". Peak-hour ties resolve to the lowest
// hour numerically.
func Compute(asOf time.Time, loc *time.Location, records []checkin.Checkin) Stats {
	if loc == nil {
		loc = time.Local
	}
	local := asOf.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	weekStart := dayStart.AddDate(0, 0, -((int(dayStart.Weekday()) + 6) % 7))

	out := Stats{
		PerScope: map[string]int{},
		PerHour:  map[string]int{},
	}
	subjects := map[string]struct{}{}
	var last time.Time

	for _, rec := range records {
		out.Total++

		scope := rec.Scope
		if scope == "" {
			scope = UnknownScope
		}
		out.PerScope[scope]++

		if rec.SubjectID != "" {
			subjects[rec.SubjectID] = struct{}{}
		}

		ts := rec.Timestamp.In(loc)
		if !ts.Before(weekStart) {
			out.ThisWeek++
		}
		if !ts.Before(dayStart) {
			out.Today++
			out.PerHour[strconv.Itoa(ts.Hour())]++
		}
		if rec.Timestamp.After(last) {
			last = rec.Timestamp
		}
	}

	out.UniqueSubjects = len(subjects)
	if !last.IsZero() {
		out.LastCheckin = &last
	}
	out.PeakHour = peakHour(out.PerHour)
	return out
}

// peakHour picks the busiest hour of today, breaking ties by the lower hour.
func peakHour(perHour map[string]int) string {
	best, bestCount := -1, 0
	for key, count := range perHour {
		hour, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if count > bestCount || (count == bestCount && best != -1 && hour < best) {
			best, bestCount = hour, count
		}
	}
	if best < 0 {
		return ""
	}
	return strconv.Itoa(best)
}

// Source supplies the full record set.
type Source interface {
	All(ctx context.Context) ([]checkin.Checkin, error)
}

// Service fetches and folds on demand.
type Service struct {
	source Source
	loc    *time.Location

	// Now is the clock; tests override it.
	Now func() time.Time
}

// NewService creates the aggregator.
func NewService(source Source, loc *time.Location) *Service {
	return &Service{source: source, loc: loc, Now: time.Now}
}

// Compute fetches every record and folds it into a snapshot.
func (s *Service) Compute(ctx context.Context) (Stats, error) {
	records, err := s.source.All(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Compute(s.Now(), s.loc, records), nil
}
