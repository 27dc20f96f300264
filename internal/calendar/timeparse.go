package calendar

import (
	"math"
	"strings"
	"time"

	"querycal/internal/model"
)

// zonedLayouts carry their own offset; naiveLayouts are read in the
// projector's location.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		time.RFC1123Z,
		time.RFC1123,
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	}
)

// ParseTime interprets a cell as an instant. Time values pass through,
// strings are matched against common date/date-time layouts and numbers
// are Unix epoch milliseconds. Everything else fails, as does any instant
// outside years 0 through 9999.
func ParseTime(v model.Value, loc *time.Location) (time.Time, bool) {
	t, ok := parseTime(v, loc)
	if !ok || t.Year() < 0 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}

func parseTime(v model.Value, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	switch v.Kind {
	case model.KindTime:
		if v.Time.IsZero() {
			return time.Time{}, false
		}
		return v.Time, true

	case model.KindNumber:
		// float64(math.MaxInt64) rounds up to 2^63, so >= keeps the
		// conversion below in range.
		if math.IsNaN(v.Num) || v.Num >= math.MaxInt64 || v.Num < math.MinInt64 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(v.Num)).In(loc), true

	case model.KindString:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		for _, layout := range naiveLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
		return time.Time{}, false

	default:
		return time.Time{}, false
	}
}
