// Package metrics declares the Prometheus collectors for trip clustering and
// place lookup. Collectors register with the default registry on init and are
// served by promhttp at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeCreated = "created"
	OutcomeFailed  = "failed"

	ResultHit      = "hit"
	ResultMiss     = "miss"
	ResultError    = "error"
	ResultRejected = "rejected"
)

var (
	// AutoClusterRuns counts AutoCluster invocations that reached the engine.
	AutoClusterRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "photo_trips_autocluster_runs_total",
		Help: "Total number of auto-cluster runs",
	})

	// AutoClusterGroups counts clustered groups by outcome (created, failed).
	AutoClusterGroups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_trips_autocluster_groups_total",
			Help: "Total number of clustered groups by outcome",
		},
		[]string{"outcome"},
	)

	// AutoClusterCandidates observes how many photos each run considered.
	AutoClusterCandidates = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "photo_trips_autocluster_candidates",
		Help:    "Number of candidate photos per auto-cluster run",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	// AutoClusterDuration tracks end-to-end run latency including store writes.
	AutoClusterDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "photo_trips_autocluster_duration_seconds",
		Help:    "Duration of auto-cluster runs in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})

	// GeocodeLookups counts reverse place lookups by result
	// (hit, miss, error, rejected).
	GeocodeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_trips_geocode_lookups_total",
			Help: "Total number of reverse place lookups by result",
		},
		[]string{"result"},
	)

	// GeocodeDuration tracks upstream request latency.
	GeocodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "photo_trips_geocode_request_duration_seconds",
		Help:    "Duration of upstream reverse geocoding requests in seconds",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordAutoCluster records one finished run.
func RecordAutoCluster(candidates, created, failed int, d time.Duration) {
	AutoClusterRuns.Inc()
	AutoClusterCandidates.Observe(float64(candidates))
	AutoClusterGroups.WithLabelValues(OutcomeCreated).Add(float64(created))
	AutoClusterGroups.WithLabelValues(OutcomeFailed).Add(float64(failed))
	AutoClusterDuration.Observe(d.Seconds())
}

// RecordGeocode records one place lookup.
func RecordGeocode(result string) {
	GeocodeLookups.WithLabelValues(result).Inc()
}
