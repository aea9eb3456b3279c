package tracked

import (
	"time"

	"go.uber.org/zap"

	"github.com/databill86/scout-apm-go/internal/callset"
	"github.com/databill86/scout-apm-go/internal/export"
	"github.com/databill86/scout-apm-go/internal/shared/id"
)

// Tag keys with engine-level meaning.
const (
	TagIgnoreTransaction = "ignore_transaction"
	TagError             = "error"
)

// TrackedRequest aggregates everything observed for one logical unit of
// work: the active span stack, completed root spans, request-level tags,
// and the N+1 call-set detector. It belongs to a single execution context
// and performs no internal locking.
type TrackedRequest struct {
	id        id.RequestID
	contextID ContextID
	registry  *Registry
	start     time.Time

	spanStack     []*Span
	completeSpans []*Span
	tags          map[string]any

	realRequest bool
	finished    bool
	callSet     *callset.CallSet
}

// ID returns the request's identifier.
func (r *TrackedRequest) ID() id.RequestID { return r.id }

// StartTime returns when the request was first observed.
func (r *TrackedRequest) StartTime() time.Time { return r.start }

// CallSet returns the request's N+1 detector.
func (r *TrackedRequest) CallSet() *callset.CallSet { return r.callSet }

// StartSpan opens a span named operation under the current span (or as a
// new root) and makes it current. Always returns a usable span; on a
// finished request the span is inert and will never be exported.
func (r *TrackedRequest) StartSpan(operation string) *Span {
	span := newSpan(operation, r.CurrentSpan())
	if r.finished {
		return span
	}
	r.spanStack = append(r.spanStack, span)
	if m := r.registry.metrics; m != nil {
		m.SpansStarted.Inc()
	}
	return span
}

// StopSpan closes the current span. On an empty stack it is a no-op.
// Closing the last open span finalizes the request.
func (r *TrackedRequest) StopSpan() {
	if len(r.spanStack) == 0 {
		return
	}
	r.stopTopSpan(time.Now())
	if len(r.spanStack) == 0 {
		r.Finish()
	}
}

// CurrentSpan returns the innermost open span without mutation, or nil.
func (r *TrackedRequest) CurrentSpan() *Span {
	if len(r.spanStack) == 0 {
		return nil
	}
	return r.spanStack[len(r.spanStack)-1]
}

// Tag attaches a key/value at the request level, distinct from any span's
// tags. Tagging a finished request is a no-op.
func (r *TrackedRequest) Tag(key string, value any) {
	if r.finished {
		return
	}
	r.tags[key] = coerceTag(value)
}

// TagLookup returns the request-level value stored under key.
func (r *TrackedRequest) TagLookup(key string) (any, bool) {
	v, ok := r.tags[key]
	return v, ok
}

// MarkRealRequest flags that actual application work ran, separating real
// traffic from framework noise like static-asset 404s.
func (r *TrackedRequest) MarkRealRequest() {
	if r.finished {
		return
	}
	r.realRequest = true
}

// RealRequest reports whether application work was observed.
func (r *TrackedRequest) RealRequest() bool { return r.realRequest }

// Finished reports whether the request has been finalized.
func (r *TrackedRequest) Finished() bool { return r.finished }

// Finish finalizes the request: force-closes any open spans in LIFO
// order, hands the completed trace to the reporter, and detaches the
// registry binding so the next Instance call starts fresh. Idempotent.
func (r *TrackedRequest) Finish() {
	if r.finished {
		return
	}
	r.finished = true

	now := time.Now()
	for len(r.spanStack) > 0 {
		r.stopTopSpan(now)
	}

	r.registry.detach(r.contextID, r)

	trace := r.buildTrace(now)
	r.registry.reporter.Report(trace)

	if m := r.registry.metrics; m != nil {
		m.RequestsActive.Dec()
	}
	r.registry.logger.Debug("tracked request finalized",
		zap.String("request_id", r.id.String()),
		zap.Duration("duration", trace.Stop.Sub(trace.Start)),
		zap.Int("root_spans", len(trace.Spans)),
	)
}

// stopTopSpan pops and closes the innermost span, filing it under its
// parent or as a completed root.
func (r *TrackedRequest) stopTopSpan(at time.Time) {
	span := r.spanStack[len(r.spanStack)-1]
	r.spanStack = r.spanStack[:len(r.spanStack)-1]
	span.close(at)

	if span.parent != nil {
		span.parent.children = append(span.parent.children, span)
	} else {
		r.completeSpans = append(r.completeSpans, span)
	}
	if m := r.registry.metrics; m != nil {
		m.SpansStopped.Inc()
	}
}

// CompleteSpans returns the finished root spans accumulated so far.
func (r *TrackedRequest) CompleteSpans() []*Span {
	return r.completeSpans
}

func (r *TrackedRequest) buildTrace(stop time.Time) *export.Trace {
	trace := &export.Trace{
		RequestID:        r.id.String(),
		Start:            r.start,
		Stop:             stop,
		RealRequest:      r.realRequest,
		NPlusOneFindings: r.callSet.Findings(),
	}
	if ignored, ok := r.tags[TagIgnoreTransaction]; ok {
		trace.Ignored = ignored == true
	}
	_, trace.Errored = r.tags[TagError]

	if len(r.tags) > 0 {
		trace.RequestTags = make(map[string]any, len(r.tags))
		for k, v := range r.tags {
			trace.RequestTags[k] = v
		}
	}
	for _, span := range r.completeSpans {
		trace.Spans = append(trace.Spans, span.record())
	}
	return trace
}
