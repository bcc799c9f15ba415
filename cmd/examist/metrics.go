package main

import (
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"examist/internal/core"
)

// metricsSink owns the recorder selected by store.metrics.
type metricsSink struct {
	kind     string
	registry *prometheus.Registry
	expvar   *core.ExpvarMetricsRecorder
	recorder core.MetricsRecorder
}

func newMetricsSink(kind string) (*metricsSink, error) {
	m := &metricsSink{kind: kind}
	switch kind {
	case "", "none":
	case "prometheus":
		m.registry = prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetrics(m.registry)
		if err != nil {
			return nil, err
		}
		m.recorder = rec
	case "expvar":
		m.expvar = core.NewExpvarMetricsRecorder("")
		m.recorder = m.expvar
	default:
		return nil, fmt.Errorf("unknown metrics backend %s", kind)
	}
	return m, nil
}

func (m *metricsSink) storeOptions() []core.Option {
	if m.recorder == nil {
		return nil
	}
	return []core.Option{core.WithMetrics(m.recorder)}
}

// handler exposes the metrics for scraping. It is nil when metrics are off.
func (m *metricsSink) handler() http.Handler {
	switch {
	case m.registry != nil:
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	case m.expvar != nil:
		return expvar.Handler()
	default:
		return nil
	}
}

func (m *metricsSink) dump(w io.Writer) error {
	switch {
	case m == nil:
		return nil
	case m.registry != nil:
		families, err := m.registry.Gather()
		if err != nil {
			return err
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return err
			}
		}
		return nil
	case m.expvar != nil:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{m.expvar.Name(): m.expvar.Snapshot()})
	default:
		fmt.Fprintln(w, "store metrics are off; set store.metrics to prometheus or expvar")
		return nil
	}
}
