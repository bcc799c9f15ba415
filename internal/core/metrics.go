package core

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Dispatch outcomes reported to MetricsRecorder.
const (
	OutcomePlain     = "plain"
	OutcomePending   = "pending"
	OutcomeFulfilled = "fulfilled"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// MetricsRecorder observes dispatches and task lifecycles.
type MetricsRecorder interface {
	ObserveDispatch(actionType, outcome string)
	ObserveTask(actionType string, success bool, duration time.Duration)
	SetPending(actionType string, inFlight int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveDispatch(string, string)          {}
func (noopMetrics) ObserveTask(string, bool, time.Duration) {}
func (noopMetrics) SetPending(string, int)                  {}

// PrometheusMetrics records store activity as Prometheus collectors.
type PrometheusMetrics struct {
	actions  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  *prometheus.GaugeVec
}

// NewPrometheusMetrics registers the store collectors with reg. Collectors
// already registered by another store on the same registry are reused.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMetrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "examist_store_actions_total",
			Help: "Dispatched actions by type and outcome",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "examist_store_task_duration_seconds",
			Help:    "Asynchronous action duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"type"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "examist_store_pending",
			Help: "In-flight asynchronous actions by type",
		}, []string{"type"}),
	}
	var err error
	if m.actions, err = register(reg, m.actions); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.pending, err = register(reg, m.pending); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveDispatch implements MetricsRecorder.
func (m *PrometheusMetrics) ObserveDispatch(actionType, outcome string) {
	m.actions.WithLabelValues(actionType, outcome).Inc()
}

// ObserveTask implements MetricsRecorder.
func (m *PrometheusMetrics) ObserveTask(actionType string, _ bool, d time.Duration) {
	m.duration.WithLabelValues(actionType).Observe(d.Seconds())
}

// SetPending implements MetricsRecorder.
func (m *PrometheusMetrics) SetPending(actionType string, inFlight int) {
	m.pending.WithLabelValues(actionType).Set(float64(inFlight))
}
