package tracked

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/databill86/scout-apm-go/internal/backtrace"
	"github.com/databill86/scout-apm-go/internal/callset"
	"github.com/databill86/scout-apm-go/internal/config"
	"github.com/databill86/scout-apm-go/internal/export"
	"github.com/databill86/scout-apm-go/internal/ignore"
	"github.com/databill86/scout-apm-go/internal/metrics"
	"github.com/databill86/scout-apm-go/internal/shared/id"
)

// ContextID is the opaque identity of one execution context: adapters
// mint one per HTTP request, background jobs pass their own. It is the
// registry key that replaces implicit thread-local lookup.
type ContextID string

// NewContextID mints a fresh execution-context identity.
func NewContextID() ContextID {
	return ContextID(id.Default().GenerateWithPrefix("ctx"))
}

// Options configures a Registry. Zero values get working defaults.
type Options struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Reporter receives finalized traces. Defaults to a LogReporter, or
	// export.Discard when monitoring is disabled.
	Reporter export.Reporter
	// CapturePolicy gates backtrace capture for N+1 findings. Defaults to
	// a process-wide token bucket (1/s, burst 10).
	CapturePolicy callset.CapturePolicy
}

// Registry is the shared instance-lookup table mapping execution contexts
// to their current TrackedRequest. It is the only piece of cross-context
// shared state in the engine and is safe for concurrent use.
type Registry struct {
	requests sync.Map // ContextID -> *TrackedRequest

	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	reporter export.Reporter
	policy   callset.CapturePolicy
	ignorer  *ignore.Matcher
}

// NewRegistry creates a registry from options.
func NewRegistry(opts Options) *Registry {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := &Registry{
		cfg:     cfg,
		logger:  logger,
		metrics: opts.Metrics,
		ignorer: ignore.NewMatcher(cfg.Tracking.IgnorePaths),
	}

	reg.reporter = opts.Reporter
	if reg.reporter == nil {
		reg.reporter = export.NewLogReporter(logger, opts.Metrics)
	}
	if !cfg.Core.Monitor {
		reg.reporter = export.Discard
	}

	reg.policy = opts.CapturePolicy
	if reg.policy == nil {
		reg.policy = callset.RateLimited(rate.NewLimiter(rate.Limit(1), 10))
	}
	if !cfg.Tracking.CollectBacktraces {
		reg.policy = callset.NeverCapture
	}
	return reg
}

// Instance returns the TrackedRequest bound to cid, creating one if
// absent. A finished instance still present under cid (the host reused
// the context without synchronizing a cross-context Finish) is replaced
// and silently discarded.
func (reg *Registry) Instance(cid ContextID) *TrackedRequest {
	if v, ok := reg.requests.Load(cid); ok {
		r := v.(*TrackedRequest)
		if !r.finished {
			return r
		}
		reg.requests.CompareAndDelete(cid, v)
	}

	r := reg.newRequest(cid)
	if v, loaded := reg.requests.LoadOrStore(cid, r); loaded {
		// Lost a race for this context; the host broke the single-owner
		// contract, but we stay consistent and hand back the winner.
		return v.(*TrackedRequest)
	}
	if reg.metrics != nil {
		reg.metrics.RequestsActive.Inc()
	}
	return r
}

// Lookup returns the TrackedRequest bound to cid without creating one.
func (reg *Registry) Lookup(cid ContextID) (*TrackedRequest, bool) {
	v, ok := reg.requests.Load(cid)
	if !ok {
		return nil, false
	}
	return v.(*TrackedRequest), true
}

// IgnorePath reports whether path is configured as ignored. Pure
// predicate; adapters use it to tag rather than to skip tracking.
func (reg *Registry) IgnorePath(path string) bool {
	return reg.ignorer.Matches(path)
}

// Config returns the registry's configuration.
func (reg *Registry) Config() *config.Config { return reg.cfg }

func (reg *Registry) newRequest(cid ContextID) *TrackedRequest {
	r := &TrackedRequest{
		id:        id.NewRequestID(),
		contextID: cid,
		registry:  reg,
		start:     time.Now(),
		tags:      make(map[string]any),
	}
	r.callSet = callset.New(callset.Options{
		Threshold: reg.cfg.Tracking.NPlusOneThreshold,
		Policy:    reg.policy,
		Capture:   reg.captureBacktrace,
	})
	reg.logger.Debug("tracked request started",
		zap.String("request_id", r.id.String()),
		zap.String("context_id", string(cid)),
	)
	return r
}

func (reg *Registry) captureBacktrace() []backtrace.Frame {
	if reg.metrics != nil {
		reg.metrics.BacktracesTaken.Inc()
	}
	return backtrace.Capture(reg.cfg.Tracking.MaxBacktraceFrames, reg.cfg.Core.AppRoot)
}

// detach removes cid's binding if it still points at r.
func (reg *Registry) detach(cid ContextID, r *TrackedRequest) {
	reg.requests.CompareAndDelete(cid, r)
}
