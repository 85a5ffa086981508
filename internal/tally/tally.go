// Package tally maintains cheap live counters in redis, updated by the worker
// as check-in events arrive. The authoritative numbers come from the stats
// aggregator, which recomputes from the record store; these exist so
// dashboards can poll without a full table scan.
package tally

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"checkin/internal/queue"
)

const (
	keyTotal  = "checkin:tally:total"
	keyDay    = "checkin:tally:day:"
	keyScope  = "checkin:tally:scope:"
	dayFormat = "2006-01-02"
)

// Tally applies events to the counters and reads them back.
type Tally struct {
	client *redis.Client
	loc    *time.Location
}

// New creates a tally bound to a timezone for day bucketing.
func New(client *redis.Client, loc *time.Location) *Tally {
	if loc == nil {
		loc = time.Local
	}
	return &Tally{client: client, loc: loc}
}

// Apply bumps the counters for one check-in event. Day keys expire after two
// days; they only back the live view.
func (t *Tally) Apply(ctx context.Context, evt queue.CheckinEvent) error {
	day := evt.Timestamp.In(t.loc).Format(dayFormat)
	pipe := t.client.Pipeline()
	pipe.Incr(ctx, keyTotal)
	pipe.Incr(ctx, keyDay+day)
	pipe.Expire(ctx, keyDay+day, 48*time.Hour)
	if evt.Scope != "" {
		pipe.Incr(ctx, keyScope+evt.Scope)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Live is the dashboard counter snapshot.
type Live struct {
	Total int64 `json:"total"`
	Today int64 `json:"today"`
}

// Snapshot reads the current counters. Missing keys read as zero.
func (t *Tally) Snapshot(ctx context.Context, asOf time.Time) (Live, error) {
	day := asOf.In(t.loc).Format(dayFormat)
	total, err := t.client.Get(ctx, keyTotal).Int64()
	if err != nil && err != redis.Nil {
		return Live{}, err
	}
	today, err := t.client.Get(ctx, keyDay+day).Int64()
	if err != nil && err != redis.Nil {
		return Live{}, err
	}
	return Live{Total: total, Today: today}, nil
}
