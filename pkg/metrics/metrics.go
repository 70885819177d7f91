package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

const (
	replicator = "replicator"

	// Job metrics
	jobsTotal          = "jobs_total"
	jobDurationSeconds = "job_duration_seconds"
	jobsRunning        = "jobs_running"
	jobsQueued         = "jobs_queued"
	breakerOpen        = "breaker_open"

	// Labels
	jobResultLabel = "result"
)

var jobsTotalLabels = []string{
	jobResultLabel,
}

var jobsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: replicator,
		Name:      jobsTotal,
		Help:      "number of processed jobs partitioned by result",
	},
	jobsTotalLabels,
)

var jobDurationMetric = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Subsystem: replicator,
		Name:      jobDurationSeconds,
		Help:      "time spent processing a single job",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	},
)

var jobsRunningMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: replicator,
		Name:      jobsRunning,
		Help:      "number of jobs currently executing",
	},
)

var jobsQueuedMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: replicator,
		Name:      jobsQueued,
		Help:      "number of jobs waiting for an executor slot",
	},
)

var breakerOpenMetric = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Subsystem: replicator,
		Name:      breakerOpen,
		Help:      "1 when the circuit breaker is rejecting new jobs",
	},
)

func IncreaseJobsTotalMetric(result string) {
	jobsTotalMetric.With(prometheus.Labels{jobResultLabel: result}).Inc()
}

func ObserveJobDuration(seconds float64) {
	jobDurationMetric.Observe(seconds)
}

func UpdateJobsRunningMetric(count int) {
	jobsRunningMetric.Set(float64(count))
}

func UpdateJobsQueuedMetric(count int) {
	jobsQueuedMetric.Set(float64(count))
}

func UpdateBreakerOpenMetric(open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	breakerOpenMetric.Set(v)
}

type PrometheusMetricsHandler struct{}

func NewPrometheusMetricsHandler() *PrometheusMetricsHandler {
	return &PrometheusMetricsHandler{}
}

func (h *PrometheusMetricsHandler) Handler() http.Handler {
	return promhttp.Handler()
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(jobsTotalMetric)
	prometheus.MustRegister(jobDurationMetric)
	prometheus.MustRegister(jobsRunningMetric)
	prometheus.MustRegister(jobsQueuedMetric)
	prometheus.MustRegister(breakerOpenMetric)
}
