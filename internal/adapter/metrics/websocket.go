package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics covers dashboard viewers. Handshakes are counted by HTTPMetrics.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	MessagesPublished prometheus.Counter
	ViewersRejected   prometheus.Counter
	SnapshotReplays   prometheus.Counter

	// A viewer that falls behind skips snapshots instead of being dropped.
	SnapshotsSuperseded  prometheus.Counter
	BrokenViewersDropped prometheus.Counter
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      name,
			Help:      help,
		})
	}

	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Connected dashboard viewers.",
		}),
		MessagesPublished:    counter("messages_published_total", "Position snapshots queued for viewers."),
		ViewersRejected:      counter("viewers_rejected_total", "Viewers turned away at the viewer limit."),
		SnapshotReplays:      counter("snapshot_replays_total", "Latest snapshots sent to viewers right after they connected."),
		SnapshotsSuperseded:  counter("snapshots_superseded_total", "Undelivered snapshots replaced by a newer one."),
		BrokenViewersDropped: counter("broken_viewers_dropped_total", "Viewers dropped after a failed write."),
	}

	reg.MustRegister(m.ActiveConnections, m.MessagesPublished, m.ViewersRejected, m.SnapshotReplays, m.SnapshotsSuperseded, m.BrokenViewersDropped)
	return m
}
