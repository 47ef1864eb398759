package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReadingsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ism_readings_ingested_total", Help: "Readings accepted by the pipeline"},
		[]string{"source"},
	)
	ReadingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ism_readings_rejected_total", Help: "Payloads rejected as malformed"},
		[]string{"source"},
	)
	Anomalies = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ism_anomalies_total", Help: "Readings classified anomalous"},
	)
	ScoringErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ism_scoring_errors_total", Help: "Classifier failures absorbed by the pipeline"},
	)
	WindowSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "ism_window_size", Help: "Entries currently held per rolling store"},
		[]string{"kind"},
	)
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ism_subscriber_events_dropped_total", Help: "Events dropped from slow subscriber queues"},
	)
	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ism_subscribers", Help: "Currently connected subscribers"},
	)
	BusMessages = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ism_bus_messages_total", Help: "MQTT messages received"},
	)
	BusDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ism_bus_messages_dropped_total", Help: "MQTT messages dropped as undecodable"},
	)
	BusReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ism_bus_reconnects_total", Help: "MQTT broker (re)connections"},
	)
)

func MustRegister() {
	prometheus.MustRegister(
		ReadingsIngested, ReadingsRejected, Anomalies, ScoringErrors,
		WindowSize, EventsDropped, Subscribers,
		BusMessages, BusDropped, BusReconnects,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
