package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/databill86/scout-apm-go/internal/scout"
	"github.com/databill86/scout-apm-go/internal/tracked"
)

// Gin context key carrying the execution-context identity.
const ginContextIDKey = "scout.context_id"

// ContextIDFrom returns the execution-context identity minted for this
// request, for handlers that call the agent API directly.
func ContextIDFrom(c *gin.Context) (tracked.ContextID, bool) {
	v, ok := c.Get(ginContextIDKey)
	if !ok {
		return "", false
	}
	cid, ok := v.(tracked.ContextID)
	return cid, ok
}

// RequestTiming is the outermost middleware. It binds a fresh tracked
// request to the HTTP request, opens the Middleware span so everything
// between here and the handler is timed, and guarantees finalization no
// matter how the rest of the chain behaves.
func RequestTiming(agent *scout.Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := requestContextID(c)
		r := agent.Registry().Instance(cid)
		c.Request = c.Request.WithContext(tracked.NewContext(c.Request.Context(), r))

		span := r.StartSpan("Middleware")
		trackQueueTime(c.Request, r)

		defer func() {
			if v := recover(); v != nil {
				r.Tag(tracked.TagError, "true")
				r.Finish()
				panic(v)
			}
			if c.Writer.Status() >= http.StatusInternalServerError || len(c.Errors) > 0 {
				r.Tag(tracked.TagError, "true")
			}
			// Only stop the span we opened; a handler that failed to
			// close its own spans must not make us pop someone else's.
			if r.CurrentSpan() == span {
				r.StopSpan()
			}
			r.Finish()
		}()

		c.Next()
	}
}

// HandlerTiming is the innermost middleware, timing the handler itself.
// The span opens under a placeholder name and is renamed once the route
// is known, so unrouted noise stays labeled Unknown and is never marked
// as a real request.
func HandlerTiming(agent *scout.Agent) gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := requestContextID(c)
		r := agent.Registry().Instance(cid)

		span := r.StartSpan("Unknown")
		if route := c.FullPath(); route != "" {
			span.SetOperation(scout.KindController + "/" + strings.TrimPrefix(route, "/"))
			r.MarkRealRequest()

			path := c.Request.URL.Path
			if agent.Registry().IgnorePath(path) {
				r.Tag(tracked.TagIgnoreTransaction, true)
			}
			store := agent.Context()
			store.Add(cid, "path", path)
			store.Add(cid, "user_ip", remoteIP(c.Request))
		}

		defer func() {
			if v := recover(); v != nil {
				r.Tag(tracked.TagError, "true")
				if r.CurrentSpan() == span {
					r.StopSpan()
				}
				panic(v)
			}
			if r.CurrentSpan() == span {
				r.StopSpan()
			}
		}()

		c.Next()
	}
}

// requestContextID returns this request's ContextID, minting and storing
// one on first use so either middleware can run first.
func requestContextID(c *gin.Context) tracked.ContextID {
	if cid, ok := ContextIDFrom(c); ok {
		return cid
	}
	cid := tracked.NewContextID()
	c.Set(ginContextIDKey, cid)
	return cid
}
