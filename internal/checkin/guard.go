package checkin

import (
	"context"
	"fmt"
	"time"

	"checkin/internal/recordstore"
)

// Guard answers whether a subject already has a check-in within the active
// window and scope. The check is advisory on backends without conditional
// writes: between this query and the recorder's write, a scan on another
// device can race (see Service.Record).
type Guard struct {
	store  recordstore.Store
	table  string
	window Window
}

// NewGuard creates a guard over the check-in table.
func NewGuard(store recordstore.Store, table string, window Window) *Guard {
	return &Guard{store: store, table: table, window: window}
}

// AlreadyCheckedIn returns the most recent matching check-in timestamp, or
// nil when none exists. An empty scope (single-door deployments) omits the
// scope term and checks subject + window only.
func (g *Guard) AlreadyCheckedIn(ctx context.Context, subjectID, scope string, asOf time.Time) (*time.Time, error) {
	records, err := g.store.Query(ctx, g.table, recordstore.QueryOptions{
		Filter:     g.filter(subjectID, scope, asOf),
		SortField:  FieldTimestamp,
		SortDesc:   true,
		MaxRecords: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	ts, ok := records[0].Time(FieldTimestamp)
	if !ok {
		return nil, nil
	}
	return &ts, nil
}

// filter builds the guard predicate: subject AND scope AND window bounds.
func (g *Guard) filter(subjectID, scope string, asOf time.Time) recordstore.Filter {
	terms := []recordstore.Filter{recordstore.Eq(FieldSubjectID, subjectID)}
	if scope != "" {
		terms = append(terms, recordstore.Eq(FieldScope, scope))
	}
	if start, end, bounded := g.window.Bounds(asOf); bounded {
		terms = append(terms,
			recordstore.AtOrAfter(FieldTimestamp, start),
			recordstore.Before(FieldTimestamp, end))
	}
	return recordstore.And(terms...)
}
