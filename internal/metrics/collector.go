package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bulkip"

// Collector owns a private registry so several instances can coexist.
type Collector struct {
	registry *prometheus.Registry

	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec

	submissions        *prometheus.CounterVec
	submissionSize     prometheus.Histogram
	submissionDuration *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Requests sent to the reputation backend.",
		}, []string{"endpoint", "outcome"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of reputation backend requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"endpoint"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Address batch submissions by outcome.",
		}, []string{"outcome"}),
		submissionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_addresses",
			Help:      "Unique valid addresses per submission.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "submission_duration_seconds",
			Help:      "Time from submit to result or failure.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests served by the web surface.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of the web surface.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.backendCalls,
		c.backendDuration,
		c.submissions,
		c.submissionSize,
		c.submissionDuration,
		c.httpRequests,
		c.httpDuration,
	)

	return c
}

// ObserveBackendCall records one reputation backend request.
func (c *Collector) ObserveBackendCall(endpoint, outcome string, elapsed time.Duration) {
	c.backendCalls.WithLabelValues(endpoint, outcome).Inc()
	c.backendDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveSubmission records one finished submission.
func (c *Collector) ObserveSubmission(outcome string, addresses int, elapsed time.Duration) {
	c.submissions.WithLabelValues(outcome).Inc()
	c.submissionSize.Observe(float64(addresses))
	c.submissionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveHTTP(route string, code int, elapsed time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// RegisterGauge exposes a value sampled at scrape time.
func (c *Collector) RegisterGauge(name, help string, sample func() float64) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, sample))
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
