package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/databill86/scout-apm-go/internal/tracked"
)

// QueueTimeTag is the request tag holding time spent queued in front of
// the application, in integer microseconds.
const QueueTimeTag = "scout.queue_time_us"

var queueTimeRe = regexp.MustCompile(`t=|\.`)

// parseQueueStart parses an X-Queue-Start / X-Request-Start header value.
// Load balancers disagree on format ("t=1600000000.123000",
// "1600000000123", plain seconds with fraction); stripping "t=" and "."
// and reading seconds(10)+milliseconds(3) handles the common ones.
func parseQueueStart(headerValue string) (time.Time, bool) {
	raw := queueTimeRe.ReplaceAllString(headerValue, "")
	if len(raw) < 13 {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(raw[:10], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw[10:13], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, ms*int64(time.Millisecond)), true
}

// trackQueueTime tags the request with queue time derived from the
// frontend timing header. Unparseable values are skipped silently and
// timestamps in the future are rejected so a skewed clock can never
// produce a negative duration.
func trackQueueTime(req *http.Request, r *tracked.TrackedRequest) {
	headerValue := req.Header.Get("X-Queue-Start")
	if headerValue == "" {
		headerValue = req.Header.Get("X-Request-Start")
	}
	if headerValue == "" {
		return
	}

	queuedAt, ok := parseQueueStart(headerValue)
	if !ok {
		return
	}
	if queuedAt.After(r.StartTime()) {
		return
	}
	r.Tag(QueueTimeTag, r.StartTime().Sub(queuedAt).Microseconds())
}
