package tracked

import (
	"time"

	"github.com/databill86/scout-apm-go/internal/backtrace"
	"github.com/databill86/scout-apm-go/internal/export"
	"github.com/databill86/scout-apm-go/internal/shared/id"
)

// Span is a single timed operation inside a tracked request. It is owned
// by the request's execution context and is not safe for concurrent use.
type Span struct {
	id        id.SpanID
	operation string
	start     time.Time
	stop      time.Time
	tags      map[string]any
	frames    []backtrace.Frame
	parent    *Span
	children  []*Span
}

func newSpan(operation string, parent *Span) *Span {
	return &Span{
		id:        id.NewSpanID(),
		operation: operation,
		start:     time.Now(),
		parent:    parent,
	}
}

// ID returns the span's identifier.
func (s *Span) ID() id.SpanID { return s.id }

// Operation returns the current operation name.
func (s *Span) Operation() string { return s.operation }

// SetOperation renames the span. Adapters open spans under a placeholder
// name and fill in the real one once the route is resolved. Renaming a
// stopped span is a no-op.
func (s *Span) SetOperation(operation string) {
	if s.Stopped() {
		return
	}
	s.operation = operation
}

// Tag attaches a key/value to this span. Values are coerced to a closed
// set so export stays well-defined. Tagging a stopped span is a no-op.
func (s *Span) Tag(key string, value any) {
	if s.Stopped() {
		return
	}
	if s.tags == nil {
		s.tags = make(map[string]any)
	}
	s.tags[key] = coerceTag(value)
}

// TagLookup returns the value stored under key.
func (s *Span) TagLookup(key string) (any, bool) {
	v, ok := s.tags[key]
	return v, ok
}

// StartTime returns when the span was opened.
func (s *Span) StartTime() time.Time { return s.start }

// StopTime returns when the span was closed; ok is false while open.
func (s *Span) StopTime() (time.Time, bool) {
	return s.stop, s.Stopped()
}

// Stopped reports whether the span has been closed.
func (s *Span) Stopped() bool { return !s.stop.IsZero() }

// Parent returns the enclosing span, or nil for a root span.
func (s *Span) Parent() *Span { return s.parent }

// Duration returns elapsed time, running for an open span.
func (s *Span) Duration() time.Duration {
	if s.Stopped() {
		return s.stop.Sub(s.start)
	}
	return time.Since(s.start)
}

// SetBacktrace attaches captured frames to the span. No-op once stopped.
func (s *Span) SetBacktrace(frames []backtrace.Frame) {
	if s.Stopped() {
		return
	}
	s.frames = frames
}

// close stamps the stop time, clamped so stop never precedes start.
func (s *Span) close(at time.Time) {
	if s.Stopped() {
		return
	}
	if at.Before(s.start) {
		at = s.start
	}
	s.stop = at
}

func (s *Span) record() export.SpanRecord {
	rec := export.SpanRecord{
		ID:        s.id.String(),
		Operation: s.operation,
		Start:     s.start,
		Stop:      s.stop,
	}
	if len(s.tags) > 0 || len(s.frames) > 0 {
		rec.Tags = make(map[string]any, len(s.tags)+1)
		for k, v := range s.tags {
			rec.Tags[k] = v
		}
		if len(s.frames) > 0 {
			rec.Tags["backtrace"] = s.frames
		}
	}
	for _, child := range s.children {
		rec.Children = append(rec.Children, child.record())
	}
	return rec
}
