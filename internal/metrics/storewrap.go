package metrics

import (
	"context"
	"time"

	"checkin/internal/recordstore"
)

// InstrumentedStore times every record store round trip.
type InstrumentedStore struct {
	Inner recordstore.Store
}

// WrapStore decorates a store with latency metrics.
func WrapStore(inner recordstore.Store) *InstrumentedStore {
	return &InstrumentedStore{Inner: inner}
}

func (s *InstrumentedStore) Query(ctx context.Context, table string, opts recordstore.QueryOptions) ([]recordstore.Record, error) {
	defer func(started time.Time) { ObserveStoreCall("query", started) }(time.Now())
	return s.Inner.Query(ctx, table, opts)
}

func (s *InstrumentedStore) Get(ctx context.Context, table, id string) (recordstore.Record, bool, error) {
	defer func(started time.Time) { ObserveStoreCall("get", started) }(time.Now())
	return s.Inner.Get(ctx, table, id)
}

func (s *InstrumentedStore) Create(ctx context.Context, table string, fields map[string]any) (recordstore.Record, error) {
	defer func(started time.Time) { ObserveStoreCall("create", started) }(time.Now())
	return s.Inner.Create(ctx, table, fields)
}

func (s *InstrumentedStore) DeleteRecords(ctx context.Context, table string, ids []string) error {
	defer func(started time.Time) { ObserveStoreCall("delete", started) }(time.Now())
	return s.Inner.DeleteRecords(ctx, table, ids)
}

func (s *InstrumentedStore) CreateIfAbsent(ctx context.Context, table string, fields map[string]any, guard recordstore.Filter) (recordstore.Record, bool, error) {
	defer func(started time.Time) { ObserveStoreCall("create_if_absent", started) }(time.Now())
	return s.Inner.CreateIfAbsent(ctx, table, fields, guard)
}
