// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssessmentsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_assessments_started_total",
			Help: "Total number of risk assessments started",
		},
	)

	AssessmentsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_assessments_completed_total",
			Help: "Total number of risk assessments that streamed to completion",
		},
	)

	AssessmentsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_assessments_failed_total",
			Help: "Total number of risk assessments that failed",
		},
		[]string{"error_code"},
	)

	AssessmentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_assessment_outcomes_total",
			Help: "Completed risk assessments by risk tier and eligibility",
		},
		[]string{"risk", "eligible"},
	)

	AssessmentDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loan_assessment_duration_seconds",
			Help:    "Duration of a risk assessment stream in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"status"},
	)

	PartialObjects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_partial_objects_total",
			Help: "Total number of partial objects published to stream handles",
		},
	)

	MalformedPartials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_malformed_partials_total",
			Help: "Total number of partial objects without a response field",
		},
	)

	ApplicationViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_application_violations_total",
			Help: "Schema violations found in submitted applications",
		},
		[]string{"code"},
	)

	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_requests_total",
			Help: "Outbound model API requests by status code",
		},
		[]string{"code", "method"},
	)

	// Streaming responses are observed when headers arrive, not when the body ends.
	ModelResponseLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_response_latency_seconds",
			Help:    "Time until the model API returned response headers",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"code", "method"},
	)

	ActiveStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loan_active_streams",
			Help: "Number of assessment streams in flight",
		},
	)

	ActiveForms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loan_active_forms",
			Help: "Number of form instances held in memory",
		},
	)
)
