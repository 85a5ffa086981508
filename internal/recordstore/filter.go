package recordstore

import (
	"time"
)

// Filter is a predicate over named record fields. The supported shapes are
// field equality, AND composition and half-open time bounds; that is the whole
// query language the check-in workflow needs.
type Filter interface {
	// Matches evaluates the predicate against a record's fields. Backends
	// that push filtering to the remote service use their own rendering and
	// never call this.
	Matches(fields map[string]any) bool
}

// EqFilter matches records whose field equals Value.
type EqFilter struct {
	Field string
	Value string
}

// AndFilter matches when every term matches. An empty AndFilter matches all.
type AndFilter struct {
	Terms []Filter
}

// AtOrAfterFilter matches timestamp fields >= Instant.
type AtOrAfterFilter struct {
	Field   string
	Instant time.Time
}

// BeforeFilter matches timestamp fields < Instant.
type BeforeFilter struct {
	Field   string
	Instant time.Time
}

// Eq builds an equality predicate.
func Eq(field, value string) Filter { return EqFilter{Field: field, Value: value} }

// And composes predicates. A single term is returned as-is.
func And(terms ...Filter) Filter {
	if len(terms) == 1 {
		return terms[0]
	}
	return AndFilter{Terms: terms}
}

// AtOrAfter bounds a timestamp field from below (inclusive).
func AtOrAfter(field string, t time.Time) Filter { return AtOrAfterFilter{Field: field, Instant: t} }

// Before bounds a timestamp field from above (exclusive).
func Before(field string, t time.Time) Filter { return BeforeFilter{Field: field, Instant: t} }

func (f EqFilter) Matches(fields map[string]any) bool {
	s, _ := fields[f.Field].(string)
	return s == f.Value
}

func (f AndFilter) Matches(fields map[string]any) bool {
	for _, term := range f.Terms {
		if !term.Matches(fields) {
			return false
		}
	}
	return true
}

func (f AtOrAfterFilter) Matches(fields map[string]any) bool {
	t, ok := fieldTime(fields, f.Field)
	return ok && !t.Before(f.Instant)
}

func (f BeforeFilter) Matches(fields map[string]any) bool {
	t, ok := fieldTime(fields, f.Field)
	return ok && t.Before(f.Instant)
}

func fieldTime(fields map[string]any, field string) (time.Time, bool) {
	s, _ := fields[field].(string)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
