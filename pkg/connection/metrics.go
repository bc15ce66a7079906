package connection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors of a Manager.
type Metrics struct {
	Reconnects          *prometheus.CounterVec
	ReconnectDuration   prometheus.Histogram
	HealthChecks        *prometheus.CounterVec
	Failures            prometheus.Counter
	ConsecutiveFailures prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Reconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssokit_connection_reconnects_total",
				Help: "Total number of reconnect attempts by outcome",
			},
			[]string{"result"},
		),
		ReconnectDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ssokit_connection_reconnect_duration_seconds",
				Help:    "Duration of the reconnect sequence in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
		),
		HealthChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssokit_connection_health_checks_total",
				Help: "Total number of health checks by outcome",
			},
			[]string{"result"},
		),
		Failures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ssokit_connection_failures_total",
				Help: "Total number of failed backend calls",
			},
		),
		ConsecutiveFailures: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ssokit_connection_consecutive_failures",
				Help: "Current number of consecutive failed backend calls",
			},
		),
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) reconnect(ok bool, seconds float64) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(result(ok)).Inc()
	m.ReconnectDuration.Observe(seconds)
}

func (m *Metrics) healthCheck(ok bool) {
	if m == nil {
		return
	}
	m.HealthChecks.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) failure(streak int) {
	if m == nil {
		return
	}
	m.Failures.Inc()
	m.ConsecutiveFailures.Set(float64(streak))
}

func (m *Metrics) success() {
	if m == nil {
		return
	}
	m.ConsecutiveFailures.Set(0)
}
