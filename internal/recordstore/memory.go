package recordstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is a mutex-guarded in-process store for tests and dev mode. It
// mirrors the remote backends' semantics, including a truly atomic
// CreateIfAbsent.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]Record
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Record)}
}

// Seed inserts a record with a fixed id, for test fixtures.
func (m *Memory) Seed(table, id string, fields map[string]any) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := Record{ID: id, Fields: cloneFields(fields)}
	m.tables[table] = append(m.tables[table], rec)
	return rec
}

func (m *Memory) Query(_ context.Context, table string, opts QueryOptions) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryLocked(table, opts), nil
}

func (m *Memory) Get(_ context.Context, table, id string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.tables[table] {
		if rec.ID == id {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

func (m *Memory) Create(_ context.Context, table string, fields map[string]any) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(table, fields), nil
}

func (m *Memory) DeleteRecords(_ context.Context, table string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := m.tables[table][:0]
	for _, rec := range m.tables[table] {
		if !drop[rec.ID] {
			kept = append(kept, rec)
		}
	}
	m.tables[table] = kept
	return nil
}

func (m *Memory) CreateIfAbsent(_ context.Context, table string, fields map[string]any, guard Filter) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing := m.queryLocked(table, QueryOptions{Filter: guard, MaxRecords: 1})
	if len(existing) > 0 {
		return existing[0], false, nil
	}
	return m.createLocked(table, fields), true, nil
}

func (m *Memory) queryLocked(table string, opts QueryOptions) []Record {
	var out []Record
	for _, rec := range m.tables[table] {
		if opts.Filter == nil || opts.Filter.Matches(rec.Fields) {
			out = append(out, rec)
		}
	}
	if opts.SortField != "" {
		field, desc := opts.SortField, opts.SortDesc
		sort.SliceStable(out, func(i, j int) bool {
			a, _ := out[i].Fields[field].(string)
			b, _ := out[j].Fields[field].(string)
			if desc {
				return a > b
			}
			return a < b
		})
	}
	if opts.MaxRecords > 0 && len(out) > opts.MaxRecords {
		out = out[:opts.MaxRecords]
	}
	return out
}

func (m *Memory) createLocked(table string, fields map[string]any) Record {
	rec := Record{
		ID:     "rec" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Fields: cloneFields(fields),
	}
	m.tables[table] = append(m.tables[table], rec)
	return rec
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
