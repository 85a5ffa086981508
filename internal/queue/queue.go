// Package queue fans successful check-ins out to the tally worker. Publishing
// is fire-and-forget from the recorder's point of view: a queue failure never
// fails the check-in.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrFull is returned when an in-memory queue has no room. Callers drop the
// event and log; the check-in itself already succeeded.
var ErrFull = errors.New("queue full")

// CheckinEvent is the envelope published per successful check-in.
type CheckinEvent struct {
	RecordID  string    `json:"record_id"`
	SubjectID string    `json:"subject_id"`
	Scope     string    `json:"scope"`
	Timestamp time.Time `json:"timestamp"`
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publish(ctx context.Context, evt CheckinEvent) error
	Consume(ctx context.Context) (<-chan CheckinEvent, error)
}

// InMemory is a minimal channel-backed queue for dev/testing.
type InMemory struct {
	ch chan CheckinEvent
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan CheckinEvent, size)}
}

// Publish enqueues an event without blocking. A full queue drops the event
// with ErrFull rather than stalling the caller.
func (q *InMemory) Publish(ctx context.Context, evt CheckinEvent) error {
	select {
	case q.ch <- evt:
		return nil
	default:
		return ErrFull
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan CheckinEvent, error) {
	out := make(chan CheckinEvent)
	go func() {
		defer close(out)
		for {
			select {
			case evt := <-q.ch:
				out <- evt
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue implements a Redis list-backed queue with JSON envelopes.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue using LPUSH/BRPOP semantics.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "checkin:events"
	}
	return &RedisQueue{client: client, key: key}
}

// Publish enqueues an event.
func (q *RedisQueue) Publish(ctx context.Context, evt CheckinEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Consume streams events using BRPOP. Malformed entries are skipped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan CheckinEvent, error) {
	out := make(chan CheckinEvent)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if len(res) == 2 {
				var evt CheckinEvent
				if err := json.Unmarshal([]byte(res[1]), &evt); err == nil {
					out <- evt
				}
			}
		}
	}()
	return out, nil
}
