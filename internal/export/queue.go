package export

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/databill86/scout-apm-go/internal/metrics"
)

// Queue decouples trace reporting from the request path with a buffered
// channel and a single drain goroutine. When the buffer is full the trace
// is dropped rather than blocking the host; drops are counted.
type Queue struct {
	traces    chan *Trace
	sink      Reporter
	logger    *zap.Logger
	metrics   *metrics.Metrics
	dropped   atomic.Int64
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewQueue starts a queue draining into sink. Size <= 0 gets a default.
func NewQueue(size int, sink Reporter, logger *zap.Logger, m *metrics.Metrics) *Queue {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		traces:  make(chan *Trace, size),
		sink:    sink,
		logger:  logger,
		metrics: m,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.drain()
	return q
}

// Report enqueues a trace, dropping it if the buffer is full or the queue
// has been closed. Requests may finalize after agent shutdown; those
// traces count as drops rather than blowing up the reporting path.
func (q *Queue) Report(t *Trace) {
	select {
	case <-q.stop:
		q.drop(t, "export queue closed, dropping trace")
		return
	default:
	}
	select {
	case q.traces <- t:
	default:
		q.drop(t, "export queue full, dropping trace")
	}
}

func (q *Queue) drop(t *Trace, msg string) {
	q.dropped.Add(1)
	if q.metrics != nil {
		q.metrics.TracesDropped.Inc()
	}
	q.logger.Warn(msg, zap.String("request_id", t.RequestID))
}

// DroppedCount returns the number of traces dropped so far.
func (q *Queue) DroppedCount() int64 {
	return q.dropped.Load()
}

// Close flushes buffered traces and stops the drain goroutine. Safe to
// call more than once; traces reported afterwards are dropped.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.stop)
		<-q.done
	})
}

func (q *Queue) drain() {
	defer close(q.done)
	for {
		select {
		case t := <-q.traces:
			q.sink.Report(t)
		case <-q.stop:
			for {
				select {
				case t := <-q.traces:
					q.sink.Report(t)
				default:
					return
				}
			}
		}
	}
}
