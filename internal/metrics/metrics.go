package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EdgesEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsmonitor_edges_enqueued_total",
		Help: "Edges placed on the pending-edge queue.",
	})

	EdgesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsmonitor_edges_skipped_total",
		Help: "Edges dropped before queueing because both endpoints were already drawn.",
	})

	EdgesDrained = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsmonitor_edges_drained_total",
		Help: "Edges moved from the pending queue into the chart.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wsmonitor_edge_queue_depth",
		Help: "Edges currently waiting in the pending queue.",
	})

	NodesAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsmonitor_nodes_added_total",
		Help: "Nodes registered and styled, by kind (server or client).",
	}, []string{"kind"})

	NodesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsmonitor_nodes_removed_total",
		Help: "Nodes detached after their fade-out completed.",
	})

	FadesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsmonitor_fades_started_total",
		Help: "Fade-removals started by DropNode.",
	})

	ActiveFades = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wsmonitor_active_fades",
		Help: "Nodes currently fading out.",
	})

	Viewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wsmonitor_viewers",
		Help: "Connected dashboard viewers.",
	})

	ViewersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wsmonitor_viewers_dropped_total",
		Help: "Viewers disconnected because they could not keep up.",
	})

	MonitorEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsmonitor_monitor_events_total",
		Help: "Monitor events received, by origin (socketio or http).",
	}, []string{"origin"})

	EventLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wsmonitor_event_latency_seconds",
		Help:    "Latency of monitored websocket events, by hop (client_to_server or server_to_client).",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"hop"})

	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wsmonitor_backend_requests_total",
		Help: "Test-management requests proxied to the backend, by action and outcome.",
	}, []string{"action", "outcome"})
)
