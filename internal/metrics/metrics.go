package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for Paddock
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Poll cycle metrics
	PollCyclesTotal   prometheus.CounterVec
	PollCycleDuration prometheus.Histogram
	VehiclesProcessed prometheus.Counter
	VehiclesFailed    prometheus.Counter

	// Trip reconciliation metrics
	TripsReconciled prometheus.CounterVec

	// Geocoding metrics
	GeocodeQueueDepth prometheus.Gauge
	GeocodeOpsTotal   prometheus.CounterVec

	// MQTT metrics
	MQTTPublishesTotal prometheus.CounterVec
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paddock_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "paddock_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "paddock_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		PollCyclesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paddock_poll_cycles_total",
				Help: "Total fetch cycles by outcome (ok, degraded, aborted)",
			},
			[]string{"outcome"},
		),
		PollCycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "paddock_poll_cycle_duration_seconds",
				Help:    "Fetch cycle wall time in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		VehiclesProcessed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paddock_vehicles_processed_total",
				Help: "Vehicles processed successfully across all cycles",
			},
		),
		VehiclesFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "paddock_vehicles_failed_total",
				Help: "Vehicles that failed a cycle after exhausting retries",
			},
		),

		TripsReconciled: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paddock_trips_reconciled_total",
				Help: "Trips reconciled from upstream by result (new, updated, skipped)",
			},
			[]string{"result"},
		),

		GeocodeQueueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "paddock_geocode_queue_depth",
				Help: "Geocoding jobs queued or waiting on the global permit",
			},
		),
		GeocodeOpsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paddock_geocode_ops_total",
				Help: "Geocoding jobs by outcome (resolved, cached, skipped, failed)",
			},
			[]string{"outcome"},
		),

		MQTTPublishesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paddock_mqtt_publishes_total",
				Help: "MQTT publishes by outcome (ok, failed)",
			},
			[]string{"outcome"},
		),
	}
}
