package stealer

import "github.com/prometheus/client_golang/prometheus"

// Metrics mirrors Stats as Prometheus collectors for external
// observability, following the pack's metrics-client convention
// (Prometheus is the ecosystem's common choice for exporting exactly
// this kind of worker-pool counter). The atomic Stats fields remain
// the source of truth the scheduler and tests read from; these
// collectors are registered alongside them, not instead of them.
type Metrics struct {
	attempts    prometheus.Counter
	successes   prometheus.Counter
	failures    prometheus.Counter
	tasksStolen prometheus.Counter
}

// NewMetrics creates and registers the pool's steal-activity counters
// against reg. Pass a fresh *prometheus.Registry per Pool in tests to
// avoid collector-already-registered panics from the global registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yaoxiang_stealer_steal_attempts_total",
			Help: "Total steal attempts made across the pool.",
		}),
		successes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yaoxiang_stealer_steal_successes_total",
			Help: "Total steal attempts that found a task.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yaoxiang_stealer_steal_failures_total",
			Help: "Total steal attempts that found no task.",
		}),
		tasksStolen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yaoxiang_stealer_tasks_stolen_total",
			Help: "Total individual tasks moved by a steal.",
		}),
	}
	reg.MustRegister(m.attempts, m.successes, m.failures, m.tasksStolen)
	return m
}

// WithMetrics installs m on the pool; every subsequent Steal/StealBatch
// call updates both the atomic Stats and these collectors.
func (p *Pool) WithMetrics(m *Metrics) *Pool {
	p.metrics = m
	return p
}
