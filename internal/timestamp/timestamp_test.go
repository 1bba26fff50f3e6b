package timestamp

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func TestToBackendRoundTrip(t *testing.T) {
	instants := []time.Time{
		time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 999000000, time.UTC),
		time.Date(1969, 7, 20, 20, 17, 40, 123000000, time.UTC),
		time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Now(),
	}

	for _, in := range instants {
		ts, err := ToBackend(in)
		require.NoError(t, err)

		out, err := FromBackend(ts)
		require.NoError(t, err)
		assert.Equal(t, in.UnixMilli(), out.UnixMilli(), "round trip of %v", in)
	}
}

func TestToBackendRejectsInvalidDates(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
	}{
		{name: "zero time", in: time.Time{}},
		{name: "year 10000", in: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToBackend(tt.in)
			assert.ErrorIs(t, err, ErrInvalidDate)
		})
	}
}

func TestFromBackendAcceptedShapes(t *testing.T) {
	want := time.Date(2025, 6, 1, 14, 0, 0, 500, time.UTC)
	ts := Timestamp{Seconds: want.Unix(), Nanoseconds: 500}

	tests := []struct {
		name string
		in   any
	}{
		{name: "value", in: ts},
		{name: "pointer", in: &ts},
		{name: "time.Time", in: want},
		{name: "protobuf", in: timestamppb.New(want)},
		{name: "map with int64", in: map[string]any{"seconds": want.Unix(), "nanoseconds": int64(500)}},
		{name: "map with float64", in: map[string]any{"seconds": float64(want.Unix()), "nanoseconds": float64(500)}},
		{name: "map with json.Number", in: map[string]any{"seconds": json.Number("1748786400"), "nanoseconds": json.Number("500")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromBackend(tt.in)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %v", got)
		})
	}
}

func TestFromBackendInvalidFormat(t *testing.T) {
	var nilTS *Timestamp
	var nilPB *timestamppb.Timestamp

	tests := []struct {
		name string
		in   any
	}{
		{name: "nil", in: nil},
		{name: "nil pointer", in: nilTS},
		{name: "nil protobuf", in: nilPB},
		{name: "string", in: "2025-06-01"},
		{name: "number", in: 1748786400},
		{name: "map missing nanoseconds", in: map[string]any{"seconds": int64(1)}},
		{name: "map with string seconds", in: map[string]any{"seconds": "1", "nanoseconds": int64(0)}},
		{name: "map with NaN", in: map[string]any{"seconds": math.NaN(), "nanoseconds": 0.0}},
		{name: "nanoseconds out of range", in: Timestamp{Seconds: 1, Nanoseconds: 1e9}},
		{name: "zero time.Time", in: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromBackend(tt.in)
			assert.ErrorIs(t, err, ErrInvalidFormat)
			assert.False(t, IsValid(tt.in))
		})
	}
}

func TestFormatDateAndTime(t *testing.T) {
	at := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	ts := MustToBackend(at)

	assert.Equal(t, "June 1, 2025", FormatDateIn(ts, time.UTC))
	assert.Equal(t, "2:00 PM", FormatTimeIn(ts, time.UTC))

	tokyo := time.FixedZone("JST", 9*60*60)
	assert.Equal(t, "11:00 PM", FormatTimeIn(ts, tokyo))

	legacy := map[string]any{"seconds": at.Unix(), "nanoseconds": int64(0)}
	assert.Equal(t, "June 1, 2025", FormatDateIn(legacy, time.UTC))
}

func TestFormatFallbacks(t *testing.T) {
	inputs := []any{
		nil,
		Timestamp{},
		"not a timestamp",
		map[string]any{"seconds": "x", "nanoseconds": "y"},
		map[string]any{},
		struct{}{},
	}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			assert.Equal(t, DateFallback, FormatDate(in))
			assert.Equal(t, TimeFallback, FormatTime(in))
		})
	}
}

func TestTimestampJSON(t *testing.T) {
	ts := Timestamp{Seconds: 1748786400, Nanoseconds: 7}

	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.JSONEq(t, `{"seconds":1748786400,"nanoseconds":7}`, string(data))

	var fromObject Timestamp
	require.NoError(t, json.Unmarshal(data, &fromObject))
	assert.Equal(t, ts, fromObject)

	var fromString Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01T14:00:00Z"`), &fromString))
	assert.Equal(t, int64(1748786400), fromString.Seconds)

	var bad Timestamp
	assert.ErrorIs(t, json.Unmarshal([]byte(`"tomorrow"`), &bad), ErrInvalidFormat)
}

func TestTimestampBefore(t *testing.T) {
	a := Timestamp{Seconds: 10, Nanoseconds: 5}
	b := Timestamp{Seconds: 10, Nanoseconds: 6}
	c := Timestamp{Seconds: 11}

	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.False(t, c.Before(a))
	assert.False(t, a.Before(a))
}
