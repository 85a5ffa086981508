package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"checkin/internal/config"
	"checkin/internal/queue"
	"checkin/internal/store"
	"checkin/internal/tally"
)

// Worker consumes check-in events and maintains the live redis tallies plus
// an audit line per event. It is intentionally dumb: the record store stays
// the source of truth and the tallies can be rebuilt by replaying stats.
func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "checkin:events")
	}

	counters := tally.New(redisClient.Client, cfg.Location())

	events, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	logger.Info("worker started, waiting for events")
	for evt := range events {
		if err := counters.Apply(ctx, evt); err != nil {
			logger.Warn("tally update failed", "record", evt.RecordID, "err", err)
			continue
		}
		logger.Info("check-in tallied",
			"record", evt.RecordID, "subject", evt.SubjectID, "scope", evt.Scope, "at", evt.Timestamp)
	}

	logger.Info("worker stopped")
}
