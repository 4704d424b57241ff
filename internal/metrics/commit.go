package metrics

import "github.com/prometheus/client_golang/prometheus"

// Commit outcomes.
const (
	CommitOK       = "ok"
	CommitConflict = "conflict"
	CommitError    = "error"
)

// Metadata commit Prometheus metrics.
var (
	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrel",
			Name:      "metadata_commits_total",
			Help:      "Metadata stage commits by outcome",
		},
		[]string{"outcome"}, // "ok" / "conflict" / "error"
	)

	CommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docrel",
			Name:      "metadata_commit_duration_seconds",
			Help:      "Time spent under the commit lock",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	CommitRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docrel",
			Name:      "metadata_commit_retries_total",
			Help:      "Staged units of work re-run after a conflict",
		},
	)
)

var commitMetricsRegistered bool

// RegisterCommitMetrics registers the commit metrics. Must be called once from main.
func RegisterCommitMetrics() {
	if commitMetricsRegistered {
		return
	}
	prometheus.MustRegister(CommitsTotal)
	prometheus.MustRegister(CommitDuration)
	prometheus.MustRegister(CommitRetriesTotal)
	commitMetricsRegistered = true
}
