package metrics

import "github.com/prometheus/client_golang/prometheus"

// PollerMetrics holds Prometheus metrics for the position poll cycle.
type PollerMetrics struct {
	CyclesTotal     *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	RetainedRecords prometheus.Gauge
	DroppedRecords  prometheus.Counter
}

// NewPollerMetrics creates and registers poller metrics on the given registry.
func NewPollerMetrics(reg prometheus.Registerer) *PollerMetrics {
	m := &PollerMetrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Total number of poll cycles, by result.",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of position fetches in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RetainedRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "retained_records",
			Help:      "Number of positions retained by the last applied poll.",
		}),
		DroppedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "dropped_records_total",
			Help:      "Total number of positions dropped by the accuracy filter.",
		}),
	}

	reg.MustRegister(m.CyclesTotal, m.FetchDuration, m.RetainedRecords, m.DroppedRecords)
	return m
}
