// Package metrics exposes the service's prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan outcomes used as label values.
const (
	OutcomeSuccess    = "success"
	OutcomeDuplicate  = "duplicate"
	OutcomeNotFound   = "not_found"
	OutcomeStoreError = "store_error"
	OutcomeInvalid    = "invalid"
	OutcomeDropped    = "dropped"
)

var (
	// ScansTotal counts scan attempts by outcome.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_scans_total",
		Help: "Scan attempts by outcome.",
	}, []string{"outcome"})

	// StoreCallDuration tracks record store round trips.
	StoreCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkin_store_call_duration_seconds",
		Help:    "Record store call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// LoginsTotal counts login attempts by result.
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_logins_total",
		Help: "Operator login attempts.",
	}, []string{"result"})
)

// ObserveStoreCall records one store round trip.
func ObserveStoreCall(op string, started time.Time) {
	StoreCallDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}
