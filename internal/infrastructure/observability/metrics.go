package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry        *prometheus.Registry
	RunningTests    prometheus.Gauge
	ExecutionsTotal *prometheus.CounterVec
	EngineErrors    *prometheus.CounterVec
	RunDuration     prometheus.Histogram
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		RunningTests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "loadtest",
			Name:      "running_executions",
			Help:      "Number of executions currently in flight",
		}),
		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loadtest",
			Name:      "executions_total",
			Help:      "Total finished executions by terminal status",
		}, []string{"status"}),
		EngineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loadtest",
			Name:      "engine_errors_total",
			Help:      "Total engine failures by error code",
		}, []string{"code"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loadtest",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of finished executions",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	r.MustRegister(m.RunningTests, m.ExecutionsTotal, m.EngineErrors, m.RunDuration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RunStarted and RunFinished satisfy the coordinator's RunStats interface.
func (m *Metrics) RunStarted() { m.RunningTests.Inc() }

func (m *Metrics) RunFinished(status, code string, seconds float64) {
	m.RunningTests.Dec()
	m.ExecutionsTotal.WithLabelValues(status).Inc()
	if code != "" {
		m.EngineErrors.WithLabelValues(code).Inc()
	}
	m.RunDuration.Observe(seconds)
}
