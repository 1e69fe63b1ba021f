package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the subtitle service.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	jobsTotal          *prometheus.CounterVec
	linesTranslated    prometheus.Counter
	captionCacheHits   prometheus.Counter
	activeJobs         prometheus.Gauge
	errorsTotal        prometheus.Counter
	jobDurationSeconds prometheus.Histogram
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtube_requests_total",
		Help: "Total number of HTTP requests received",
	})
	jobsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subtube_jobs_total",
		Help: "Total number of finished translation jobs by outcome",
	}, []string{"outcome"})
	linesTranslated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtube_lines_translated_total",
		Help: "Total number of subtitle lines translated",
	})
	captionCacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtube_caption_cache_hits_total",
		Help: "Total number of caption downloads served from the cache",
	})
	activeJobs := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "subtube_active_jobs",
		Help: "Number of jobs that are pending or running",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "subtube_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	jobDurationSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "subtube_job_duration_seconds",
		Help:    "Wall time of finished translation jobs",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	registry.MustRegister(
		requestsTotal,
		jobsTotal,
		linesTranslated,
		captionCacheHits,
		activeJobs,
		errorsTotal,
		jobDurationSeconds,
	)

	return &Metrics{
		registry:           registry,
		requestsTotal:      requestsTotal,
		jobsTotal:          jobsTotal,
		linesTranslated:    linesTranslated,
		captionCacheHits:   captionCacheHits,
		activeJobs:         activeJobs,
		errorsTotal:        errorsTotal,
		jobDurationSeconds: jobDurationSeconds,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncJobs increments the finished jobs counter for an outcome ("success" or "failed").
func (m *Metrics) IncJobs(outcome string) {
	m.jobsTotal.WithLabelValues(outcome).Inc()
}

// AddLinesTranslated adds to the translated lines counter.
func (m *Metrics) AddLinesTranslated(n int) {
	m.linesTranslated.Add(float64(n))
}

// IncCaptionCacheHits increments the caption cache hit counter.
func (m *Metrics) IncCaptionCacheHits() {
	m.captionCacheHits.Inc()
}

// SetActiveJobs sets the active jobs gauge.
func (m *Metrics) SetActiveJobs(n int) {
	m.activeJobs.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveJobDuration records the wall time of a finished job.
func (m *Metrics) ObserveJobDuration(seconds float64) {
	m.jobDurationSeconds.Observe(seconds)
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active jobs).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
