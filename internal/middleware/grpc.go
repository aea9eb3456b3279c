package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"

	"github.com/databill86/scout-apm-go/internal/scout"
	"github.com/databill86/scout-apm-go/internal/tracked"
)

// UnaryServerInterceptor tracks each unary RPC as its own unit of work,
// labeled Job/<full method> like any other background transaction.
func UnaryServerInterceptor(agent *scout.Agent) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		cid := tracked.NewContextID()
		r := agent.Registry().Instance(cid)
		r.MarkRealRequest()
		ctx = tracked.NewContext(ctx, r)

		span := r.StartSpan(scout.KindJob + "/" + strings.TrimPrefix(info.FullMethod, "/"))
		span.Tag("rpc.system", "grpc")

		defer func() {
			if v := recover(); v != nil {
				r.Tag(tracked.TagError, "true")
				r.Finish()
				panic(v)
			}
		}()

		resp, err := handler(ctx, req)
		if err != nil {
			r.Tag(tracked.TagError, "true")
		}
		if r.CurrentSpan() == span {
			r.StopSpan()
		}
		r.Finish()
		return resp, err
	}
}
