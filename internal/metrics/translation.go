package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Translation Prometheus metrics.
var (
	DocumentsTranslatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrel",
			Name:      "documents_translated_total",
			Help:      "Documents translated into rows",
		},
		[]string{"operation"},
	)

	RowsProducedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docrel",
			Name:      "rows_produced_total",
			Help:      "Doc-part rows produced, by doc-part depth",
		},
		[]string{"depth"},
	)

	DocumentsReconstructedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docrel",
			Name:      "documents_reconstructed_total",
			Help:      "Documents rebuilt from rows",
		},
	)
)

var translationMetricsRegistered bool

// RegisterTranslationMetrics registers the translation metrics. Must be called once from main.
func RegisterTranslationMetrics() {
	if translationMetricsRegistered {
		return
	}
	prometheus.MustRegister(DocumentsTranslatedTotal)
	prometheus.MustRegister(RowsProducedTotal)
	prometheus.MustRegister(DocumentsReconstructedTotal)
	translationMetricsRegistered = true
}

// ObserveRows adds n rows produced at the given doc-part depth.
func ObserveRows(depth, n int) {
	RowsProducedTotal.WithLabelValues(strconv.Itoa(depth)).Add(float64(n))
}
