package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-formsheet/pkg/submission"
)

const namespace = "formsheet"

// Metrics owns a private registry so several servers (and tests) can coexist
// in one process.
type Metrics struct {
	registry *prometheus.Registry

	submissions        *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
	rowCells           prometheus.Histogram
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// NewMetrics registers the formsheet collectors plus the Go and process
// collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission attempts by outcome code.",
		}, []string{"code"}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time spent flattening and appending a submission.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"code"}),
		rowCells: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_cells",
			Help:      "Number of cells in appended rows.",
			Buckets:   prometheus.LinearBuckets(10, 20, 8),
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		}, []string{"method", "endpoint"}),
	}
	m.registry.MustRegister(
		m.submissions,
		m.submissionDuration,
		m.rowCells,
		m.requests,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveSubmission implements submission.Observer.
func (m *Metrics) ObserveSubmission(code submission.Code, cells int, elapsed time.Duration) {
	label := string(code)
	m.submissions.WithLabelValues(label).Inc()
	m.submissionDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	if cells > 0 {
		m.rowCells.Observe(float64(cells))
	}
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
