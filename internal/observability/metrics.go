package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adcontext_bridge"

// Metrics holds the Prometheus counters, histograms, and gauges for the bridge.
type Metrics struct {
	// Geo resolution metrics.
	GeoRequests     *prometheus.CounterVec // labels: outcome={disabled,immediate,fulfilled,denied,timeout}
	GeoPending      prometheus.Gauge
	LocationEnabled prometheus.Gauge

	// Connection classification, reported as the numeric wire value.
	ConnectionType prometheus.Gauge

	// Delivery metrics.
	Registrations     prometheus.Counter
	ConsumersAttached prometheus.Gauge
	DeliverySteps     *prometheus.CounterVec // labels: step, outcome={success,error}
	DeliveryDuration  prometheus.Histogram
	CompletionHook    *prometheus.CounterVec // labels: outcome={invoked,retried,missing}

	// Delivery report sink.
	ReportsPublished prometheus.Counter
	ReportErrors     prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: provider={mapbox,google}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: layer={memory,redis}, result={hit,miss,coalesced}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider
	GeocodeEnabled     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		GeoRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geo_requests_total",
			Help:      "Geo snapshot requests by resolution outcome.",
		}, []string{"outcome"}),
		GeoPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geo_requests_pending",
			Help:      "Geo requests waiting for a coordinate, denial, or timeout.",
		}),
		LocationEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "location_enabled",
			Help:      "1 when geolocation is enabled, 0 otherwise.",
		}),
		ConnectionType: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_type",
			Help:      "Current connection classification as its wire value (0..7).",
		}),
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Consumers registered for delivery.",
		}),
		ConsumersAttached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumers_attached",
			Help:      "Consumer sessions currently connected.",
		}),
		DeliverySteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_steps_total",
			Help:      "Delivery steps executed by step and outcome.",
		}, []string{"step", "outcome"}),
		DeliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a complete delivery pass, including the completion retry.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5, 5},
		}),
		CompletionHook: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_hook_total",
			Help:      "Completion hook outcomes at the end of a delivery pass.",
		}, []string{"outcome"}),
		ReportsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_reports_published_total",
			Help:      "Delivery reports written to the report topic.",
		}),
		ReportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_report_errors_total",
			Help:      "Delivery reports that could not be written.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Reverse geocoding API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when reverse geocoding enrichment is enabled, 0 otherwise.",
		}),
	}
}

// NewMetrics creates and registers all bridge metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.GeoRequests,
		m.GeoPending,
		m.LocationEnabled,
		m.ConnectionType,
		m.Registrations,
		m.ConsumersAttached,
		m.DeliverySteps,
		m.DeliveryDuration,
		m.CompletionHook,
		m.ReportsPublished,
		m.ReportErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
	}
}
