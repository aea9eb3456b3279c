// Package tracked is the per-request span tracking engine.
//
// A TrackedRequest follows one logical unit of work (an HTTP request, a
// background job) on one execution context. Adapters open and close spans
// around sub-operations; spans close in strict LIFO order and form a tree.
// When the last span closes, or Finish is called, the request is turned
// into an export.Trace and handed to the configured reporter.
//
// Instance lookup is an explicit Registry keyed by an opaque ContextID
// rather than implicit goroutine-local state: adapters mint a ContextID
// per unit of work, carry it in the request context.Context, and the
// registry entry is removed at finalization.
//
// The engine absorbs caller misuse. Stopping with nothing open, finishing
// twice, or tagging a finished request are all no-ops; instrumentation
// must never take the host application down.
package tracked
