package athina

import (
	"encoding/json"
	"time"
)

// TimeFormat is the layout used for every timestamp sent to Athina.
const TimeFormat = time.RFC3339Nano

// Now returns the current wall-clock time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// FormatTime renders t as an ISO-8601 string in UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a timestamp produced by FormatTime.
// Timestamps without a fractional part or zone offset are accepted too.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{TimeFormat, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Parse(TimeFormat, s)
}

// Time wraps time.Time so that zero values marshal as JSON null and
// everything else in TimeFormat.
type Time struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(FormatTime(t.Time))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// durationMillis returns the floor of end-start in milliseconds, never negative.
func durationMillis(start, end time.Time) int64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
