package tracked

import (
	"fmt"
	"time"
)

// coerceTag narrows arbitrary tag values to a closed, JSON-well-defined
// set: string, bool, int64, float64, or nil. Durations become integer
// microseconds to match the queue-time tag convention. Anything else is
// formatted into a string rather than exported as an opaque type.
func coerceTag(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return v
	case bool:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case time.Duration:
		return v.Microseconds()
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
