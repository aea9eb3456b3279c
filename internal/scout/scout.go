// Package scout is the public face of the agent: what host applications
// and framework adapters call to instrument units of work.
//
// An Agent owns the tracking registry and the export pipeline. Custom
// code wraps interesting operations with Instrument, frameworks mark
// whole units of work with WebTransaction or BackgroundTransaction, and
// request-scoped facts are attached through the Context store.
package scout

import (
	"go.uber.org/zap"

	"github.com/databill86/scout-apm-go/internal/config"
	"github.com/databill86/scout-apm-go/internal/export"
	"github.com/databill86/scout-apm-go/internal/metrics"
	"github.com/databill86/scout-apm-go/internal/tracked"
)

// Span operation prefixes, mirrored in trace-aware tooling downstream.
const (
	KindCustom     = "Custom"
	KindController = "Controller"
	KindJob        = "Job"
)

// Agent ties together configuration, the tracking registry, and the
// export queue for one host process.
type Agent struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *tracked.Registry
	queue    *export.Queue
}

// New creates an agent whose traces drain into sink. A nil sink gets the
// logging reporter; nil cfg and logger get working defaults.
func New(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, sink export.Reporter) *Agent {
	if cfg == nil {
		cfg = config.LoadOrDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = export.NewLogReporter(logger, m)
	}

	queue := export.NewQueue(cfg.Tracking.ExportQueueSize, sink, logger, m)
	registry := tracked.NewRegistry(tracked.Options{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Reporter: queue,
	})

	return &Agent{cfg: cfg, logger: logger, registry: registry, queue: queue}
}

// Registry exposes the instance-lookup registry for adapters.
func (a *Agent) Registry() *tracked.Registry { return a.registry }

// Close drains and stops the export queue.
func (a *Agent) Close() { a.queue.Close() }

// Instrument runs fn inside a span named <kind>/<name>. An empty kind
// defaults to Custom. The error from fn is returned unchanged; a non-nil
// error or a panic marks the request as errored.
func (a *Agent) Instrument(cid tracked.ContextID, kind, name string, fn func(span *tracked.Span) error) error {
	if kind == "" {
		kind = KindCustom
	}
	r := a.registry.Instance(cid)
	span := r.StartSpan(kind + "/" + name)

	defer func() {
		if v := recover(); v != nil {
			r.Tag(tracked.TagError, "true")
			a.stopIfCurrent(r, span)
			panic(v)
		}
	}()

	err := fn(span)
	if err != nil {
		r.Tag(tracked.TagError, "true")
	}
	a.stopIfCurrent(r, span)
	return err
}

// WebTransaction runs fn as a Controller/<name> unit of work and marks
// the request real.
func (a *Agent) WebTransaction(cid tracked.ContextID, name string, fn func(span *tracked.Span) error) error {
	a.registry.Instance(cid).MarkRealRequest()
	return a.Instrument(cid, KindController, name, fn)
}

// BackgroundTransaction runs fn as a Job/<name> unit of work and marks
// the request real.
func (a *Agent) BackgroundTransaction(cid tracked.ContextID, name string, fn func(span *tracked.Span) error) error {
	a.registry.Instance(cid).MarkRealRequest()
	return a.Instrument(cid, KindJob, name, fn)
}

// IgnoreTransaction tags the current request so the exporter drops it.
// Tracking continues; only the reporting disposition changes.
func (a *Agent) IgnoreTransaction(cid tracked.ContextID) {
	a.registry.Instance(cid).Tag(tracked.TagIgnoreTransaction, true)
}

// stopIfCurrent stops span only if it is still the innermost open span.
// Mis-nested callers lose their own span rather than someone else's.
func (a *Agent) stopIfCurrent(r *tracked.TrackedRequest, span *tracked.Span) {
	if r.CurrentSpan() == span {
		r.StopSpan()
	}
}

// Context is the request-scoped key/value store, carried on the request's
// tag map and cleared implicitly when the request finalizes.
type Context struct {
	agent *Agent
}

// Context returns the agent's request-scoped context store.
func (a *Agent) Context() Context { return Context{agent: a} }

// Add associates value with key on the current request.
func (c Context) Add(cid tracked.ContextID, key string, value any) {
	c.agent.registry.Instance(cid).Tag(key, value)
}

// Lookup returns the value stored under key for the current request.
// It never creates a request.
func (c Context) Lookup(cid tracked.ContextID, key string) (any, bool) {
	r, ok := c.agent.registry.Lookup(cid)
	if !ok {
		return nil, false
	}
	return r.TagLookup(key)
}
