package export

import (
	"go.uber.org/zap"

	"github.com/databill86/scout-apm-go/internal/metrics"
)

// LogReporter writes finalized traces to the agent log and counts them.
// It is the default reporter when no collector transport is configured.
type LogReporter struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewLogReporter creates a LogReporter. A nil metrics set disables
// counting; a nil logger is replaced by a no-op logger.
func NewLogReporter(logger *zap.Logger, m *metrics.Metrics) *LogReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogReporter{logger: logger, metrics: m}
}

// Report logs the trace summary.
func (r *LogReporter) Report(t *Trace) {
	if r.metrics != nil {
		r.metrics.TracesReported.WithLabelValues(disposition(t)).Inc()
		r.metrics.NPlusOneFound.Add(float64(len(t.NPlusOneFindings)))
	}

	fields := []zap.Field{
		zap.String("request_id", t.RequestID),
		zap.Time("start", t.Start),
		zap.Duration("duration", t.Stop.Sub(t.Start)),
		zap.Int("root_spans", len(t.Spans)),
		zap.Bool("real_request", t.RealRequest),
	}
	if t.Ignored {
		fields = append(fields, zap.Bool("ignored", true))
	}
	if len(t.NPlusOneFindings) > 0 {
		fields = append(fields, zap.Int("n_plus_one_findings", len(t.NPlusOneFindings)))
	}

	if t.Errored {
		r.logger.Warn("trace completed with error", fields...)
	} else {
		r.logger.Debug("trace completed", fields...)
	}
}

func disposition(t *Trace) string {
	switch {
	case t.Ignored:
		return metrics.DispositionIgnored
	case !t.RealRequest:
		return metrics.DispositionNoise
	default:
		return metrics.DispositionReal
	}
}
