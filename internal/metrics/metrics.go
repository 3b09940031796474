// Package metrics exposes the Prometheus instrumentation for the
// proctoring pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctorhub_events_ingested_total",
		Help: "Behavioral events accepted into session histories, by kind.",
	}, []string{"kind"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctorhub_events_rejected_total",
		Help: "Events refused at ingestion, by reason.",
	}, []string{"reason"})

	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctorhub_sessions_started_total",
		Help: "Proctoring sessions created.",
	})

	SessionsClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proctorhub_sessions_closed_total",
		Help: "Sessions moved out of the active state, by final status.",
	}, []string{"status"})

	AlertClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proctorhub_alert_clients_dropped_total",
		Help: "Websocket subscribers disconnected for not keeping up.",
	})

	WSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "proctorhub_ws_clients",
		Help: "Currently connected websocket clients.",
	})
)
