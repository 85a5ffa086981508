// Package recordstore is the boundary to the external tabular record store.
// It exposes query-by-filter, create and batched delete operations over named
// tables, plus a conditional-write primitive that each backend implements as
// well as its service allows.
package recordstore

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable wraps any transport or service-level failure. The
// adapter never retries; retries are the caller's call.
var ErrStoreUnavailable = errors.New("record store unavailable")

// DeleteBatchSize is the largest delete set sent in one call. Hosted services
// commonly cap this at 10 records.
const DeleteBatchSize = 10

// Record is one row of a table, with the store-assigned identifier.
type Record struct {
	ID     string
	Fields map[string]any
}

// String returns a field as a string, or "" when missing or non-string.
func (r Record) String(field string) string {
	s, _ := r.Fields[field].(string)
	return s
}

// Time parses an RFC3339 timestamp field.
func (r Record) Time(field string) (time.Time, bool) {
	s := r.String(field)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// QueryOptions narrow and order a table scan.
type QueryOptions struct {
	Filter     Filter
	SortField  string
	SortDesc   bool
	MaxRecords int // 0 means no limit
}

// Store is the record store contract. Implementations: Airtable, Postgres,
// Memory.
type Store interface {
	// Query returns the records of table matching opts.Filter, ordered and
	// truncated per opts.
	Query(ctx context.Context, table string, opts QueryOptions) ([]Record, error)

	// Get fetches one record by its store-assigned id. A miss is reported as
	// found=false, not an error.
	Get(ctx context.Context, table, id string) (Record, bool, error)

	// Create inserts one record and returns it with its store-assigned id.
	Create(ctx context.Context, table string, fields map[string]any) (Record, error)

	// DeleteRecords removes records by id, chunked at DeleteBatchSize and
	// applied sequentially. A mid-sequence failure surfaces immediately;
	// already-applied chunks are not rolled back.
	DeleteRecords(ctx context.Context, table string, ids []string) error

	// CreateIfAbsent inserts fields only when no record matches guard. It
	// returns the existing record and false when one does, or the new record
	// and true. Backends without conditional writes implement this as
	// check-then-create; the residual race is theirs to document.
	CreateIfAbsent(ctx context.Context, table string, fields map[string]any, guard Filter) (Record, bool, error)
}

func chunkIDs(ids []string) [][]string {
	var chunks [][]string
	for len(ids) > 0 {
		n := DeleteBatchSize
		if len(ids) < n {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}
