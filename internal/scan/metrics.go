package scan

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects scan counters on a private registry. A nil *Metrics records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	scans        *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	parsedItems  *prometheus.CounterVec
	requests     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with Go runtime and process metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pantry_scan",
			Name:      "scans_total",
			Help:      "Scans processed, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		scanDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pantry_scan",
			Name:      "scan_duration_seconds",
			Help:      "Time spent recognizing and parsing uploads.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		parsedItems: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pantry_scan",
			Name:      "parsed_entries_total",
			Help:      "Receipt items and recipe ingredients extracted.",
		}, []string{"kind"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pantry_scan",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route pattern and status code.",
		}, []string{"route", "code"}),
	}
}

func (m *Metrics) observeScan(kind Kind, outcome string, entries int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(string(kind), outcome).Inc()
	m.scanDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	if entries > 0 {
		m.parsedItems.WithLabelValues(string(kind)).Add(float64(entries))
	}
}

func (m *Metrics) observeRequest(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
