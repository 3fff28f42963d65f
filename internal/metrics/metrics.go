// Package metrics defines the Prometheus collectors exposed on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	initOnce sync.Once

	// ScrapeCycles counts sync loop cycles by outcome ("ok" or "error").
	ScrapeCycles *prometheus.CounterVec

	// CycleDuration observes how long a full scrape cycle takes.
	CycleDuration prometheus.Histogram

	// MesasObserved is the table count in the latest successful snapshot.
	MesasObserved prometheus.Gauge

	// TableEvents counts change events published to subscribers.
	TableEvents prometheus.Counter

	// NavTransitions counts navigator transitions by name and outcome.
	NavTransitions *prometheus.CounterVec

	// Comandas counts order insertions by outcome ("complete", "partial",
	// "failed").
	Comandas *prometheus.CounterVec

	// ComandaItems counts individual dish insertions by outcome.
	ComandaItems *prometheus.CounterVec

	// HTTPRequests counts API requests by route, method and status class.
	HTTPRequests *prometheus.CounterVec

	// HTTPDuration observes API request latency by route.
	HTTPDuration *prometheus.HistogramVec
)

// Init registers all collectors with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		ScrapeCycles = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domotica_scrape_cycles_total",
			Help: "Sync loop cycles by outcome.",
		}, []string{"status"})

		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "domotica_scrape_cycle_seconds",
			Help:    "Duration of a full scrape cycle.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		})

		MesasObserved = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "domotica_mesas_observed",
			Help: "Tables present in the latest successful snapshot.",
		})

		TableEvents = promauto.NewCounter(prometheus.CounterOpts{
			Name: "domotica_table_events_total",
			Help: "Table change events published.",
		})

		NavTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domotica_nav_transitions_total",
			Help: "Navigator transitions by name and outcome.",
		}, []string{"transition", "status"})

		Comandas = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domotica_comandas_total",
			Help: "Order insertion workflows by outcome.",
		}, []string{"status"})

		ComandaItems = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domotica_comanda_items_total",
			Help: "Individual dish insertions by outcome.",
		}, []string{"status"})

		HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domotica_http_requests_total",
			Help: "API requests by route, method and status class.",
		}, []string{"route", "method", "status"})

		HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "domotica_http_request_seconds",
			Help:    "API request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"})
	})
}

// ObserveTransition records one navigator transition attempt.
func ObserveTransition(transition string, err error) {
	if NavTransitions == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	NavTransitions.WithLabelValues(transition, status).Inc()
}

// ObserveCycle records one sync loop cycle.
func ObserveCycle(d time.Duration, err error) {
	if ScrapeCycles == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	ScrapeCycles.WithLabelValues(status).Inc()
	CycleDuration.Observe(d.Seconds())
}
