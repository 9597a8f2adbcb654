package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	evaluatorCallsTotal     *prometheus.CounterVec
	evaluatorLatencySeconds *prometheus.HistogramVec

	submissionTransitionsTotal *prometheus.CounterVec
	appealBatchesTotal         *prometheus.CounterVec
	dispatchTotal              *prometheus.CounterVec
	workerTasksTotal           *prometheus.CounterVec
	reapedSubmissionsTotal     prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the judge.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooj",
			Name:      "api_requests_total",
			Help:      "Total number of submission API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mooj",
			Name:      "api_latency_seconds",
			Help:      "Latency distribution for submission API requests.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooj",
			Name:      "api_errors_total",
			Help:      "Total number of error responses returned by submission endpoints.",
		}, []string{"method", "route", "status"})

		evaluatorCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooj",
			Subsystem: "evaluator",
			Name:      "calls_total",
			Help:      "Evaluator invocations by evaluator, phase and outcome.",
		}, []string{"evaluator", "phase", "outcome"})

		evaluatorLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mooj",
			Subsystem: "evaluator",
			Name:      "duration_seconds",
			Help:      "Duration of evaluator invocations.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}, []string{"evaluator", "phase"})

		submissionTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooj",
			Subsystem: "submission",
			Name:      "transitions_total",
			Help:      "Submission status transitions.",
		}, []string{"from", "to"})

		appealBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooj",
			Subsystem: "appeal",
			Name:      "batches_total",
			Help:      "Appeal batches by outcome.",
		}, []string{"outcome"})

		dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooj",
			Subsystem: "dispatch",
			Name:      "submissions_total",
			Help:      "Evaluation hand-offs by path taken.",
		}, []string{"outcome"})

		workerTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mooj",
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Queue messages handled by the worker, by acknowledgement outcome.",
		}, []string{"outcome"})

		reapedSubmissionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mooj",
			Subsystem: "worker",
			Name:      "reaped_submissions_total",
			Help:      "Submissions forced to evaluation_error after being stuck in processing.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			evaluatorCallsTotal, evaluatorLatencySeconds,
			submissionTransitionsTotal, appealBatchesTotal, dispatchTotal,
			workerTasksTotal, reapedSubmissionsTotal,
		)
	})
}

// APIRequests exposes the counter for submission API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for submission API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for submission API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvaluatorCalls counts evaluator invocations.
func EvaluatorCalls() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluatorCallsTotal
}

// EvaluatorLatency observes evaluator invocation durations.
func EvaluatorLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return evaluatorLatencySeconds
}

// SubmissionTransitions counts status transitions.
func SubmissionTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionTransitionsTotal
}

// AppealBatches counts appeal batches by outcome.
func AppealBatches() *prometheus.CounterVec {
	RegisterMetrics()
	return appealBatchesTotal
}

// Dispatches counts evaluation hand-offs.
func Dispatches() *prometheus.CounterVec {
	RegisterMetrics()
	return dispatchTotal
}

// WorkerTasks counts handled queue messages.
func WorkerTasks() *prometheus.CounterVec {
	RegisterMetrics()
	return workerTasksTotal
}

// ReapedSubmissions counts submissions forced out of a stuck processing state.
func ReapedSubmissions() prometheus.Counter {
	RegisterMetrics()
	return reapedSubmissionsTotal
}
