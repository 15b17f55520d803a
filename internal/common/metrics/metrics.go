// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_requests_total",
			Help: "Total utterances processed, by classified intent",
		},
		[]string{"intent"},
	)

	PipelineFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_failures_total",
			Help: "Total non-fatal and fatal pipeline outcomes by error code",
		},
		[]string{"error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_stage_duration_seconds",
			Help: "Duration of each pipeline stage",
		},
		[]string{"stage"},
	)

	MutationsCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mutations_committed_total",
			Help: "Business mutations committed, by operation type",
		},
		[]string{"operation"},
	)

	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oracle_calls_total",
			Help: "Classification oracle calls by outcome",
		},
		[]string{"outcome"},
	)
)
