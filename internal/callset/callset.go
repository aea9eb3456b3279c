// Package callset detects N+1 query patterns within one tracked request.
//
// Every SQL-like operation is reduced to a normalized signature and
// counted. When a signature's count crosses the configured threshold the
// detector captures a single backtrace for it, gated by an injectable
// policy so that the expensive part can be rate-limited or disabled
// without touching the detection logic.
package callset

import (
	"golang.org/x/time/rate"

	"github.com/databill86/scout-apm-go/internal/backtrace"
)

// DefaultThreshold is the repetition count at which a call set becomes a
// finding.
const DefaultThreshold = 5

// CapturePolicy decides whether a threshold crossing may capture a
// backtrace. Separated from detection so tests can force or forbid
// capture deterministically.
type CapturePolicy func() bool

// AlwaysCapture permits every capture.
func AlwaysCapture() bool { return true }

// NeverCapture forbids every capture.
func NeverCapture() bool { return false }

// RateLimited permits captures while the limiter has budget. One shared
// limiter bounds capture cost across all requests in the process.
func RateLimited(l *rate.Limiter) CapturePolicy {
	return l.Allow
}

// Finding is one detected N+1 pattern, reported at request finalization.
type Finding struct {
	Signature string            `json:"signature"`
	Count     int               `json:"count"`
	Backtrace []backtrace.Frame `json:"backtrace,omitempty"`
}

type item struct {
	signature string
	count     int
	frames    []backtrace.Frame
}

// Options configures a CallSet.
type Options struct {
	Threshold int
	Policy    CapturePolicy
	// Capture produces the backtrace for a finding. Injected so tests can
	// observe capture counts without walking real stacks.
	Capture func() []backtrace.Frame
}

// CallSet tracks repeated operations for a single request. It is owned by
// one execution context and needs no locking.
type CallSet struct {
	threshold int
	policy    CapturePolicy
	capture   func() []backtrace.Frame
	items     map[string]*item
	order     []string
}

// New creates a CallSet. Zero-value options get working defaults.
func New(opts Options) *CallSet {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Policy == nil {
		opts.Policy = AlwaysCapture
	}
	if opts.Capture == nil {
		opts.Capture = func() []backtrace.Frame {
			return backtrace.Capture(50, "")
		}
	}
	return &CallSet{
		threshold: opts.Threshold,
		policy:    opts.Policy,
		capture:   opts.Capture,
		items:     make(map[string]*item),
	}
}

// Update records one observation of a raw operation. When the normalized
// signature's count reaches the threshold exactly and the policy allows
// it, a backtrace is captured once for that signature. The return value
// reports whether this observation triggered the capture, so callers can
// attach the frames to the span that crossed the line.
func (c *CallSet) Update(raw string) bool {
	sig := Normalize(raw)
	it, ok := c.items[sig]
	if !ok {
		it = &item{signature: sig}
		c.items[sig] = it
		c.order = append(c.order, sig)
	}
	it.count++

	if it.count == c.threshold && it.frames == nil && c.policy() {
		it.frames = c.capture()
		return true
	}
	return false
}

// Count returns the running count for a raw operation's signature.
func (c *CallSet) Count(raw string) int {
	if it, ok := c.items[Normalize(raw)]; ok {
		return it.count
	}
	return 0
}

// BacktraceFor returns the captured backtrace for a raw operation's
// signature, or nil if none was captured.
func (c *CallSet) BacktraceFor(raw string) []backtrace.Frame {
	if it, ok := c.items[Normalize(raw)]; ok {
		return it.frames
	}
	return nil
}

// Findings returns signatures whose count reached the threshold, in first
// observation order.
func (c *CallSet) Findings() []Finding {
	var out []Finding
	for _, sig := range c.order {
		it := c.items[sig]
		if it.count >= c.threshold {
			out = append(out, Finding{
				Signature: it.signature,
				Count:     it.count,
				Backtrace: it.frames,
			})
		}
	}
	return out
}
