package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databill86/scout-apm-go/internal/config"
	"github.com/databill86/scout-apm-go/internal/export"
	"github.com/databill86/scout-apm-go/internal/scout"
	"github.com/databill86/scout-apm-go/internal/tracked"
)

type capture struct {
	mu     sync.Mutex
	traces []*export.Trace
}

func (c *capture) Report(t *export.Trace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.traces = append(c.traces, t)
}

func setupRouter(t *testing.T) (*gin.Engine, *scout.Agent, *capture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sink := &capture{}
	cfg := config.Default()
	cfg.Tracking.IgnorePaths = []string{"/health"}
	agent := scout.New(cfg, nil, nil, sink)
	t.Cleanup(agent.Close)

	router := gin.New()
	router.Use(RequestTiming(agent))
	router.Use(HandlerTiming(agent))
	return router, agent, sink
}

// traces drains the export queue and returns everything reported.
func traces(agent *scout.Agent, sink *capture) []*export.Trace {
	agent.Close()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	return sink.traces
}

func TestMiddlewarePairProducesTrace(t *testing.T) {
	router, agent, sink := setupRouter(t)

	router.GET("/users/:id", func(c *gin.Context) {
		time.Sleep(time.Millisecond)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest("GET", "/users/42", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	got := traces(agent, sink)
	require.Len(t, got, 1)
	trace := got[0]

	assert.True(t, trace.RealRequest)
	assert.False(t, trace.Errored)
	assert.False(t, trace.Ignored)
	assert.Equal(t, "/users/42", trace.RequestTags["path"])
	assert.Equal(t, "203.0.113.9", trace.RequestTags["user_ip"])

	require.Len(t, trace.Spans, 1)
	root := trace.Spans[0]
	assert.Equal(t, "Middleware", root.Operation)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "Controller/users/:id", root.Children[0].Operation)
}

func TestMiddlewareQueueTimeTagged(t *testing.T) {
	router, agent, sink := setupRouter(t)
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Queue-Start", "t=1600000000.123000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	got := traces(agent, sink)
	require.Len(t, got, 1)

	v, ok := got[0].RequestTags[QueueTimeTag]
	require.True(t, ok)
	assert.Positive(t, v.(int64))
}

func TestMiddlewareIgnoredPath(t *testing.T) {
	router, agent, sink := setupRouter(t)
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	got := traces(agent, sink)
	require.Len(t, got, 1)
	assert.True(t, got[0].Ignored, "ignored paths are tracked but flagged")
	assert.True(t, got[0].RealRequest)
}

func TestMiddlewareUnroutedRequestIsNoise(t *testing.T) {
	router, agent, sink := setupRouter(t)
	router.GET("/known", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/missing.gif", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	got := traces(agent, sink)
	require.Len(t, got, 1)
	assert.False(t, got[0].RealRequest, "static-asset 404s are not real requests")

	require.Len(t, got[0].Spans, 1)
	require.Len(t, got[0].Spans[0].Children, 1)
	assert.Equal(t, "Unknown", got[0].Spans[0].Children[0].Operation)
}

func TestMiddlewarePanicStillFinalizes(t *testing.T) {
	router, agent, sink := setupRouter(t)
	router.Use(gin.Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(w, httptest.NewRequest("GET", "/boom", nil))
	})

	got := traces(agent, sink)
	require.Len(t, got, 1)
	assert.True(t, got[0].Errored)

	// Every span got force-closed on the way out.
	var check func(spans []export.SpanRecord)
	check = func(spans []export.SpanRecord) {
		for _, s := range spans {
			assert.False(t, s.Stop.IsZero(), "span %s left open", s.Operation)
			check(s.Children)
		}
	}
	check(got[0].Spans)
}

func TestMiddleware5xxMarksError(t *testing.T) {
	router, agent, sink := setupRouter(t)
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/fail", nil))

	got := traces(agent, sink)
	require.Len(t, got, 1)
	assert.True(t, got[0].Errored)
}

func TestConcurrentRequestsIsolated(t *testing.T) {
	router, agent, sink := setupRouter(t)
	router.GET("/a", func(c *gin.Context) {
		time.Sleep(2 * time.Millisecond)
		c.Status(http.StatusOK)
	})
	router.GET("/b", func(c *gin.Context) {
		time.Sleep(2 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	var wg sync.WaitGroup
	for _, path := range []string{"/a", "/b"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		}(path)
	}
	wg.Wait()

	got := traces(agent, sink)
	require.Len(t, got, 2)

	paths := map[any]bool{}
	for _, trace := range got {
		require.Len(t, trace.Spans, 1, "one complete root per request")
		paths[trace.RequestTags["path"]] = true
	}
	assert.Len(t, paths, 2, "no cross-request tag leakage")
}

func TestContextIDAvailableToHandlers(t *testing.T) {
	router, agent, sink := setupRouter(t)

	router.GET("/work", func(c *gin.Context) {
		cid, ok := ContextIDFrom(c)
		require.True(t, ok)

		_ = agent.Instrument(cid, "Redis", "Get", func(*tracked.Span) error { return nil })
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/work", nil))

	got := traces(agent, sink)
	require.Len(t, got, 1)
	root := got[0].Spans[0]
	require.Len(t, root.Children, 1)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "Redis/Get", root.Children[0].Children[0].Operation)
}

func TestRemoteIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{
			name:    "forwarded-for first entry",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"},
			want:    "203.0.113.9",
		},
		{
			name:    "real-ip fallback",
			headers: map[string]string{"X-Real-IP": "198.51.100.7"},
			want:    "198.51.100.7",
		},
		{
			name:       "peer address fallback",
			remoteAddr: "192.0.2.1:1234",
			want:       "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.remoteAddr != "" {
				req.RemoteAddr = tt.remoteAddr
			}
			assert.Equal(t, tt.want, remoteIP(req))
		})
	}
}
