// Package middleware adapts web frameworks to the tracking engine.
//
// The gin adapter is a pair, mirroring where instrumentation wants to sit
// in a middleware stack: RequestTiming goes as early (outermost) as
// possible so later middleware is timed, HandlerTiming as late (innermost)
// as possible so it times only the handler. Both absorb partial failure —
// a chain that never calls through, a handler that panics mid-span — and
// always leave the tracked request finalized.
//
// The gRPC interceptor treats each unary call as a background transaction.
package middleware
