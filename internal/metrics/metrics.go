// Package metrics exposes the engine's prometheus instrumentation. The
// write counters double as the idempotence instrumentation: a clean re-parse
// of an up-to-date contest must not move them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchAttempts counts adapter fetch attempts by source and outcome
	// (rows, empty, transient, structural, config).
	FetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podium",
		Subsystem: "parse",
		Name:      "fetch_attempts_total",
		Help:      "Adapter fetch attempts by source and outcome.",
	}, []string{"source", "outcome"})

	// StatisticsWrites counts statistics writes by kind (create, update,
	// delete). A reconciliation pass that changes nothing writes nothing.
	StatisticsWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podium",
		Subsystem: "reconcile",
		Name:      "statistics_writes_total",
		Help:      "Statistics rows written by kind.",
	}, []string{"kind"})

	// RatingPasses counts rating computations by result (computed,
	// skipped, failed).
	RatingPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podium",
		Subsystem: "rating",
		Name:      "passes_total",
		Help:      "Rating passes by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(FetchAttempts, StatisticsWrites, RatingPasses)
}

// CountWrites records one reconciliation's write counts.
func CountWrites(created, updated, deleted int) {
	StatisticsWrites.WithLabelValues("create").Add(float64(created))
	StatisticsWrites.WithLabelValues("update").Add(float64(updated))
	StatisticsWrites.WithLabelValues("delete").Add(float64(deleted))
}

// Handler returns the scrape handler for a --metrics-addr listener.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes the scrape handler on addr until the listener fails.
// Callers run it in a goroutine alongside a batch.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
