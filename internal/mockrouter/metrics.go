package mockrouter

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks what the mock serves so a scrape shows the same traffic
// shape the benchmark harness reports from the client side.
type Metrics struct {
	registry *prometheus.Registry

	plansTotal   *prometheus.CounterVec
	planDuration prometheus.Histogram
	keysIssued   prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		plansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "routeprobe",
				Subsystem: "mock",
				Name:      "plans_total",
				Help:      "Plan requests served, by HTTP status and cache state",
			},
			[]string{"status", "cache_state"},
		),
		planDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "routeprobe",
				Subsystem: "mock",
				Name:      "plan_duration_seconds",
				Help:      "Time spent serving plan requests",
				Buckets:   prometheus.DefBuckets,
			},
		),
		keysIssued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "routeprobe",
				Subsystem: "mock",
				Name:      "keys_issued_total",
				Help:      "API keys minted by the issuer endpoint",
			},
		),
	}
	m.registry.MustRegister(m.plansTotal, m.planDuration, m.keysIssued)
	return m
}

func (m *Metrics) observePlan(status int, cacheState string, elapsed time.Duration) {
	m.plansTotal.WithLabelValues(strconv.Itoa(status), cacheState).Inc()
	m.planDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
