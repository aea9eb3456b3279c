// Package export defines the handoff between the tracking engine and the
// reporting subsystem.
//
// A finalized request becomes a Trace, an inert value with no references
// back into the engine, and is handed to a Reporter. The wire protocol to
// any remote collector lives behind the Reporter interface and is not this
// package's concern; the shipped reporters log through zap and count
// through Prometheus.
package export

import (
	"time"

	"github.com/databill86/scout-apm-go/internal/callset"
)

// SpanRecord is one node of the exported span tree.
type SpanRecord struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Start     time.Time      `json:"start"`
	Stop      time.Time      `json:"stop"`
	Tags      map[string]any `json:"tags,omitempty"`
	Children  []SpanRecord   `json:"children,omitempty"`
}

// Duration returns the span's wall time.
func (s SpanRecord) Duration() time.Duration {
	return s.Stop.Sub(s.Start)
}

// Trace is one finalized tracked request, ready for export.
type Trace struct {
	RequestID        string            `json:"request_id"`
	Start            time.Time         `json:"start"`
	Stop             time.Time         `json:"stop"`
	Spans            []SpanRecord      `json:"spans"`
	RequestTags      map[string]any    `json:"request_tags,omitempty"`
	RealRequest      bool              `json:"real_request"`
	Ignored          bool              `json:"ignored"`
	Errored          bool              `json:"errored"`
	NPlusOneFindings []callset.Finding `json:"n_plus_one_findings,omitempty"`
}

// Reporter receives finalized traces. Implementations must not block the
// caller; Report is invoked on the host's request path.
type Reporter interface {
	Report(t *Trace)
}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(t *Trace)

func (f ReporterFunc) Report(t *Trace) { f(t) }

// Discard drops every trace. Used when monitoring is disabled.
var Discard Reporter = ReporterFunc(func(*Trace) {})
