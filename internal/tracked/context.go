package tracked

import "context"

type ctxKey struct{}

// NewContext returns a context carrying r, so downstream instrumentation
// can reach the current request without an explicit handle.
func NewContext(ctx context.Context, r *TrackedRequest) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext extracts the TrackedRequest carried by ctx, if any.
func FromContext(ctx context.Context) (*TrackedRequest, bool) {
	if ctx == nil {
		return nil, false
	}
	r, ok := ctx.Value(ctxKey{}).(*TrackedRequest)
	return r, ok
}
