// Package metrics exposes prometheus collectors for the conversion API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dicompixel"

// Metrics holds every collector the server updates.
type Metrics struct {
	Requests     *prometheus.CounterVec   // by mode, status
	Files        *prometheus.CounterVec   // by mode, result
	Duration     *prometheus.HistogramVec // by mode
	CacheLookups *prometheus.CounterVec   // by result
	InFlight     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// registers nothing, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_requests_total",
			Help:      "Conversion requests by mode and final status.",
		}, []string{"mode", "status"}),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "converted_files_total",
			Help:      "Files processed by mode and result.",
		}, []string{"mode", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time spent converting one request.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"mode"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversions_in_flight",
			Help:      "Conversion requests currently running.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Requests, m.Files, m.Duration, m.CacheLookups, m.InFlight)
	}
	return m
}

// ObserveRequest records the outcome of one request.
func (m *Metrics) ObserveRequest(mode, status string, converted, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(mode, status).Inc()
	if converted > 0 {
		m.Files.WithLabelValues(mode, "converted").Add(float64(converted))
	}
	if failed > 0 {
		m.Files.WithLabelValues(mode, "failed").Add(float64(failed))
	}
	m.Duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// CacheHit counts a cache lookup. hit=false is a miss.
func (m *Metrics) CacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

// Track increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) Track() func() {
	if m == nil {
		return func() {}
	}
	m.InFlight.Inc()
	return m.InFlight.Dec
}
