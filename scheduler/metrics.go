package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the scheduler's ready-queue depth and concurrent
// node execution as Prometheus gauges, following the same
// collector-per-component convention as stealer.Metrics.
type Metrics struct {
	readyDepth  prometheus.Gauge
	activeNodes prometheus.Gauge
}

// NewMetrics creates and registers the scheduler's gauges against reg.
// Pass a fresh *prometheus.Registry per FlowScheduler in tests to avoid
// collector-already-registered panics from the global registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		readyDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yaoxiang_scheduler_ready_queue_depth",
			Help: "Number of DAG nodes currently in the ready queue.",
		}),
		activeNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yaoxiang_scheduler_active_nodes",
			Help: "Number of DAG nodes currently executing.",
		}),
	}
	reg.MustRegister(m.readyDepth, m.activeNodes)
	return m
}
