// Package metrics defines the prometheus collectors exposed by
// otahub-server, registered on the default registry and served via
// promhttp.Handler(). Grounded on the teacher's
// internal/pkg/metrics/metrics.go naming convention, adapted off the
// teacher's controller-runtime registry (no Kubernetes manager is
// present here) onto the plain prometheus client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsRoutedTotal counts every event the broker has broadcast,
	// labeled by concrete event type.
	EventsRoutedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otahub_broker_events_routed_total",
			Help: "Total number of events broadcast by the broker, by event type.",
		},
		[]string{"event"},
	)

	// EventsDroppedTotal counts broadcasts dropped because a runner's
	// inbox was full.
	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otahub_broker_events_dropped_total",
			Help: "Total number of events dropped because a runner's inbox was full.",
		},
		[]string{"runner", "event"},
	)

	// CatalogOperationDuration records how long catalog writes take.
	CatalogOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "otahub_catalog_operation_duration_seconds",
			Help:    "Latency of catalog KV operations, by operation name.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// AdminSessionOpen is 1 when an admin WebSocket session currently
	// holds the single-session slot, 0 otherwise.
	AdminSessionOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "otahub_admin_session_open",
			Help: "1 if an admin WebSocket session currently holds the single-session slot.",
		},
	)

	// MQTTReconnectsTotal counts autopaho connection manager reconnect
	// attempts.
	MQTTReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "otahub_mqtt_reconnects_total",
			Help: "Total number of MQTT broker reconnect attempts.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EventsRoutedTotal,
		EventsDroppedTotal,
		CatalogOperationDuration,
		AdminSessionOpen,
		MQTTReconnectsTotal,
	)
}
