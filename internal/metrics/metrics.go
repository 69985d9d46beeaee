// Package metrics declares the service's domain Prometheus metrics.
// HTTP request metrics live with the middleware that records them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "armorlens"

// Query engine metrics
var (
	// QueryDuration tracks how long a full pipeline run takes, by surface.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Rule query pipeline duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// QueryTerms tracks how many clauses a tokenized query carried.
	QueryTerms = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_terms",
			Help:      "Number of clauses per evaluated query",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	// QueryResults tracks result set sizes after filtering.
	QueryResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_results",
			Help:      "Number of rules remaining after the filter pipeline",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)
)

// Dataset metrics
var (
	// DatasetRules is the size of the active rule set.
	DatasetRules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_rules",
			Help:      "Number of rules in the active dataset",
		},
	)

	// DatasetLoadedTimestamp is the unix time the active dataset was loaded.
	DatasetLoadedTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataset_loaded_timestamp_seconds",
			Help:      "Unix time the active dataset was loaded",
		},
	)

	// IngestTotal counts dataset loads by source and result.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Total number of dataset loads by source and result",
		},
		[]string{"source", "result"}, // source: sheet, upload, object, snapshot
	)

	// IngestDuration tracks fetch plus parse time.
	IngestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Dataset load duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"source"},
	)

	// RefreshErrorsTotal counts failed scheduled refreshes.
	RefreshErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_errors_total",
			Help:      "Total number of failed scheduled refreshes",
		},
	)
)

// Ingest result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// RecordIngest records one dataset load attempt.
func RecordIngest(source string, seconds float64, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	IngestTotal.WithLabelValues(source, result).Inc()
	IngestDuration.WithLabelValues(source).Observe(seconds)
}
