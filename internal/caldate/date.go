package caldate

import (
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date with day precision. All compliance math in the
// tracker runs on Date values so that time-of-day and timezone drift can
// never shift a day-difference calculation.
//
// The zero Date means "absent". Callers decide what absent means for them:
// display code shows "N/A", reporting code excludes the patient.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func New(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

func FromTime(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today converts the caller's wall-clock reading. The core packages never
// call this themselves; "today" is always an injected parameter.
func Today(now time.Time) Date {
	return FromTime(now)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	if d.IsZero() {
		return Date{}
	}
	return FromTime(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) Equal(o Date) bool {
	return d.Year == o.Year && d.Month == o.Month && d.Day == o.Day
}

// Format renders MM/DD/YYYY, the display convention used across every
// generated document. Absent dates render as the empty string.
func (d Date) Format() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format("01/02/2006")
}

// ISO renders YYYY-MM-DD for storage and API payloads.
func (d Date) ISO() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format("2006-01-02")
}

// MarshalJSON renders the ISO form, with absent dates as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.ISO() + `"`), nil
}

// UnmarshalJSON accepts any string layout Parse accepts, plus bare epoch
// numbers.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		*d = Date{}
		return nil
	}
	*d = Parse(s)
	return nil
}

// DaysBetween returns b minus a in whole days. Both dates are already
// midnight-aligned, so the division is exact.
func DaysBetween(a, b Date) int {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	return int(b.Time().Sub(a.Time()) / (24 * time.Hour))
}

// TimeProvider is any wrapper type that can surface its instant as a
// time.Time (datastore timestamp wrappers and the like).
type TimeProvider interface {
	Time() time.Time
}

// EpochSeconds is the shape of epoch-second containers that arrive from
// import payloads.
type EpochSeconds struct {
	Seconds int64 `json:"seconds"`
}

var parseLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
}

// Normalize coerces any of the date shapes seen in patient payloads into a
// Date. Every other package treats this as the single place where date
// representations are allowed to vary; malformed input yields the zero Date
// rather than an error.
func Normalize(v any) Date {
	switch t := v.(type) {
	case nil:
		return Date{}
	case Date:
		return t
	case *Date:
		if t == nil {
			return Date{}
		}
		return *t
	case time.Time:
		return FromTime(t)
	case *time.Time:
		if t == nil {
			return Date{}
		}
		return FromTime(*t)
	case TimeProvider:
		return FromTime(t.Time())
	case EpochSeconds:
		return fromEpoch(t.Seconds)
	case *EpochSeconds:
		if t == nil {
			return Date{}
		}
		return fromEpoch(t.Seconds)
	case string:
		return Parse(t)
	case int64:
		return fromEpoch(t)
	case int:
		return fromEpoch(int64(t))
	case float64:
		return fromEpoch(int64(t))
	case map[string]any:
		// JSON-decoded epoch container: {"seconds": n}.
		if sec, ok := t["seconds"]; ok {
			return Normalize(sec)
		}
		return Date{}
	default:
		return Date{}
	}
}

// Parse accepts the string layouts that occur in stored records and import
// files. Unparseable strings yield the zero Date.
func Parse(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t)
		}
	}
	// Bare epoch seconds sometimes arrive as strings.
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(sec)
	}
	return Date{}
}

func fromEpoch(sec int64) Date {
	if sec <= 0 {
		return Date{}
	}
	return FromTime(time.Unix(sec, 0).UTC())
}
