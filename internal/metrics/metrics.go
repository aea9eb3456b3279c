// Package metrics exposes the agent's own health as Prometheus metrics.
//
// These measure the instrumentation, not the host application: span volume,
// export queue behavior, and N+1 detections. Hosts that already run a
// Prometheus registry can pass it in; everything else lands on the default
// registerer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all agent Prometheus metrics.
type Metrics struct {
	SpansStarted    prometheus.Counter
	SpansStopped    prometheus.Counter
	RequestsActive  prometheus.Gauge
	TracesReported  *prometheus.CounterVec
	TracesDropped   prometheus.Counter
	NPlusOneFound   prometheus.Counter
	BacktracesTaken prometheus.Counter
}

// New creates the agent metric set registered against reg. A nil reg uses
// the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		SpansStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scout_spans_started_total",
			Help: "Total number of spans opened",
		}),
		SpansStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scout_spans_stopped_total",
			Help: "Total number of spans closed",
		}),
		RequestsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scout_requests_active",
			Help: "Tracked requests currently in flight",
		}),
		TracesReported: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scout_traces_reported_total",
			Help: "Traces handed to the reporter, by disposition",
		}, []string{"disposition"}),
		TracesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scout_traces_dropped_total",
			Help: "Traces dropped because the export queue was full",
		}),
		NPlusOneFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "scout_n_plus_one_findings_total",
			Help: "N+1 query findings reported",
		}),
		BacktracesTaken: factory.NewCounter(prometheus.CounterOpts{
			Name: "scout_backtraces_captured_total",
			Help: "Backtraces captured for N+1 findings",
		}),
	}
}

// Trace dispositions for TracesReported.
const (
	DispositionReal    = "real"
	DispositionIgnored = "ignored"
	DispositionNoise   = "noise"
)
