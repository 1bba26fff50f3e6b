// Package timestamp normalizes instants between time.Time and the document
// backend's {seconds, nanoseconds} representation, and renders them for display
// without ever failing on malformed persisted data.
package timestamp

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidFormat = errors.New("invalid timestamp format")
)

const (
	DateLayout = "January 2, 2006"
	TimeLayout = "3:04 PM"

	DateFallback = "Date not set"
	TimeFallback = "Time not set"
)

// Backends accept instants between 0001-01-01 and 9999-12-31 UTC.
var (
	minInstant = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxInstant = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// Timestamp is an instant as stored by the document backend.
type Timestamp struct {
	Seconds     int64 `json:"seconds" firestore:"seconds"`
	Nanoseconds int32 `json:"nanoseconds" firestore:"nanoseconds"`
}

// Now returns the current instant as a Timestamp.
func Now() Timestamp {
	return fromTime(time.Now())
}

// ToBackend converts a wall-clock value into a Timestamp.
func ToBackend(t time.Time) (Timestamp, error) {
	if !validTime(t) {
		return Timestamp{}, fmt.Errorf("%w: %v", ErrInvalidDate, t)
	}
	return fromTime(t), nil
}

// MustToBackend is ToBackend for values already known to be valid.
func MustToBackend(t time.Time) Timestamp {
	ts, err := ToBackend(t)
	if err != nil {
		panic(err)
	}
	return ts
}

// FromBackend accepts a Timestamp, a time.Time, a protobuf timestamp or a
// structural map with numeric "seconds" and "nanoseconds" keys.
func FromBackend(v any) (time.Time, error) {
	switch ts := v.(type) {
	case Timestamp:
		return ts.check()
	case *Timestamp:
		if ts == nil {
			break
		}
		return ts.check()
	case time.Time:
		if !validTime(ts) {
			break
		}
		return ts, nil
	case *time.Time:
		if ts == nil || !validTime(*ts) {
			break
		}
		return *ts, nil
	case *timestamppb.Timestamp:
		if ts == nil || ts.CheckValid() != nil {
			break
		}
		return Timestamp{Seconds: ts.GetSeconds(), Nanoseconds: ts.GetNanos()}.check()
	case map[string]any:
		secs, okS := toInt64(ts["seconds"])
		nanos, okN := toInt64(ts["nanoseconds"])
		if !okS || !okN || nanos < 0 || nanos > 999999999 {
			break
		}
		return Timestamp{Seconds: secs, Nanoseconds: int32(nanos)}.check()
	}
	return time.Time{}, fmt.Errorf("%w: %T", ErrInvalidFormat, v)
}

// IsValid reports whether FromBackend would accept v.
func IsValid(v any) bool {
	_, err := FromBackend(v)
	return err == nil
}

// Time returns the instant in UTC.
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Seconds, int64(t.Nanoseconds)).UTC()
}

func (t Timestamp) IsZero() bool {
	return t.Seconds == 0 && t.Nanoseconds == 0
}

func (t Timestamp) Before(other Timestamp) bool {
	if t.Seconds != other.Seconds {
		return t.Seconds < other.Seconds
	}
	return t.Nanoseconds < other.Nanoseconds
}

// PB returns the protobuf representation.
func (t Timestamp) PB() *timestamppb.Timestamp {
	return &timestamppb.Timestamp{Seconds: t.Seconds, Nanos: t.Nanoseconds}
}

// Value stores the Timestamp as a SQL timestamp.
func (t Timestamp) Value() (driver.Value, error) {
	return t.Time(), nil
}

// Scan reads a SQL timestamp.
func (t *Timestamp) Scan(src any) error {
	v, ok := src.(time.Time)
	if !ok {
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidFormat, src)
	}
	*t = fromTime(v)
	return nil
}

// UnmarshalJSON also accepts an RFC 3339 string.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		ts, err := ToBackend(parsed)
		if err != nil {
			return err
		}
		*t = ts
		return nil
	}

	type plain Timestamp
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	*t = Timestamp(p)
	return nil
}

// FormatDate renders v like "June 1, 2025" in the local zone.
func FormatDate(v any) string {
	return FormatDateIn(v, time.Local)
}

// FormatTime renders v like "2:00 PM" in the local zone.
func FormatTime(v any) string {
	return FormatTimeIn(v, time.Local)
}

func FormatDateIn(v any, loc *time.Location) string {
	return format(v, loc, DateLayout, DateFallback)
}

func FormatTimeIn(v any, loc *time.Location) string {
	return format(v, loc, TimeLayout, TimeFallback)
}

func format(v any, loc *time.Location, layout, fallback string) string {
	if v == nil {
		return fallback
	}
	// a zero Timestamp is an unset field, not the epoch
	if ts, ok := v.(Timestamp); ok && ts.IsZero() {
		return fallback
	}
	t, err := FromBackend(v)
	if err != nil {
		return fallback
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}

func (t Timestamp) check() (time.Time, error) {
	if t.Nanoseconds < 0 || t.Nanoseconds > 999999999 {
		return time.Time{}, fmt.Errorf("%w: nanoseconds out of range", ErrInvalidFormat)
	}
	tm := t.Time()
	if !validTime(tm) {
		return time.Time{}, fmt.Errorf("%w: seconds out of range", ErrInvalidFormat)
	}
	return tm, nil
}

func fromTime(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int32(t.Nanosecond())}
}

func validTime(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(minInstant) && !t.After(maxInstant)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}
