// Package metrics registers the engine's prometheus collectors. The
// /metrics endpoint serves the default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendationRequests counts live scoring calls per surface
	// (similar_books, user_recommendations).
	RecommendationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfrank_recommendation_requests_total",
		Help: "Number of live recommendation requests served.",
	}, []string{"surface"})

	// RefreshProgress is the current batch refresh progress fraction in
	// [0, 1]. The user phase covers the first 0.8, the book phase the rest.
	RefreshProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shelfrank_refresh_progress",
		Help: "Fractional progress of the running recommendation refresh.",
	})

	// RefreshEntityFailures counts users or books skipped during a refresh
	// because their recompute or cache replace failed.
	RefreshEntityFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfrank_refresh_entity_failures_total",
		Help: "Entities skipped during batch refresh, by phase.",
	}, []string{"phase"})

	// RefreshRuns counts completed refresh runs by outcome.
	RefreshRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfrank_refresh_runs_total",
		Help: "Batch refresh runs, by outcome.",
	}, []string{"status"})

	// RefreshLastCompleted is the unix time of the last successful refresh.
	RefreshLastCompleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shelfrank_refresh_last_completed_timestamp_seconds",
		Help: "Unix timestamp of the last successful recommendation refresh.",
	})
)
