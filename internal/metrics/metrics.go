// Package metrics exposes the prometheus collectors of the API and the worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	scans           *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	payments        *prometheus.CounterVec
	eventsProcessed *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rfidaccess",
			Name:      "scans_total",
			Help:      "Badge scans by outcome (granted, denied, unknown, error) and person type.",
		}, []string{"outcome", "type"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rfidaccess",
			Name:      "scan_duration_seconds",
			Help:      "Time spent handling one badge scan.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rfidaccess",
			Name:      "payments_registered_total",
			Help:      "Tuition payments recorded, by method.",
		}, []string{"method"}),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rfidaccess",
			Name:      "worker_events_total",
			Help:      "Scan events consumed by the worker, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.scans, m.scanDuration, m.payments, m.eventsProcessed)
	return m
}

// ObserveScan satisfies scan.Observer.
func (m *Metrics) ObserveScan(outcome, category string, elapsed time.Duration) {
	if category == "" {
		category = "none"
	}
	m.scans.WithLabelValues(outcome, category).Inc()
	m.scanDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) PaymentRegistered(method string) {
	m.payments.WithLabelValues(method).Inc()
}

// EventProcessed counts worker results: "applied", "skipped" or "failed".
func (m *Metrics) EventProcessed(result string) {
	m.eventsProcessed.WithLabelValues(result).Inc()
}
