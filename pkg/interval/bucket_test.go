package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketStart(t *testing.T) {
	customDay22, err := NewCustomDay(22)
	require.NoError(t, err)
	customDay0, err := NewCustomDay(0)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		interval Interval
		instant  time.Time
		expected time.Time
	}{
		{
			name:     "minute floors to start of minute",
			interval: Minute,
			instant:  time.Date(2025, 12, 4, 10, 0, 45, 123456789, time.UTC),
			expected: time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "hour floors to start of hour",
			interval: Hour,
			instant:  time.Date(2025, 12, 4, 10, 59, 59, 0, time.UTC),
			expected: time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC),
		},
		{
			name:     "day floors to midnight UTC",
			interval: Day,
			instant:  time.Date(2025, 12, 4, 23, 59, 59, 0, time.UTC),
			expected: time.Date(2025, 12, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "custom day 22h, instant after day start",
			interval: customDay22,
			instant:  time.Date(2025, 12, 4, 23, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 12, 4, 22, 0, 0, 0, time.UTC),
		},
		{
			name:     "custom day 22h, instant before day start",
			interval: customDay22,
			instant:  time.Date(2025, 12, 4, 21, 59, 59, 0, time.UTC),
			expected: time.Date(2025, 12, 3, 22, 0, 0, 0, time.UTC),
		},
		{
			name:     "custom day 22h, exactly on the edge",
			interval: customDay22,
			instant:  time.Date(2025, 12, 4, 22, 0, 0, 0, time.UTC),
			expected: time.Date(2025, 12, 4, 22, 0, 0, 0, time.UTC),
		},
		{
			name:     "custom day 0h matches standard day",
			interval: customDay0,
			instant:  time.Date(2025, 12, 4, 13, 30, 0, 0, time.UTC),
			expected: time.Date(2025, 12, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "custom day 22h, instant before the epoch origin",
			interval: customDay22,
			instant:  time.Date(1969, 12, 31, 12, 0, 0, 0, time.UTC),
			expected: time.Date(1969, 12, 30, 22, 0, 0, 0, time.UTC),
		},
		{
			name:     "non-UTC instant is normalized",
			interval: Hour,
			instant:  time.Date(2025, 12, 4, 10, 30, 0, 0, time.FixedZone("UTC+2", 2*3600)),
			expected: time.Date(2025, 12, 4, 8, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.interval.BucketStart(tc.instant))
		})
	}
}

// Bucket edges must be a function of the instant and configuration alone:
// computing the bucket for the same instant while iterating two different
// query windows yields identical edges.
func TestBucketStartWindowIndependence(t *testing.T) {
	customDay, err := NewCustomDay(22)
	require.NoError(t, err)

	instant := time.Date(2025, 12, 4, 23, 0, 0, 0, time.UTC)
	want := time.Date(2025, 12, 4, 22, 0, 0, 0, time.UTC)

	windows := [][2]time.Time{
		{time.Date(2025, 12, 3, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 12, 4, 10, 0, 0, 0, time.UTC), time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)},
	}

	for _, w := range windows {
		require.True(t, !instant.Before(w[0]) && instant.Before(w[1]))
		assert.Equal(t, want, customDay.BucketStart(instant))
	}
}

func TestBucketRange(t *testing.T) {
	customDay, err := NewCustomDay(22)
	require.NoError(t, err)

	start, end := customDay.BucketRange(time.Date(2025, 12, 4, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 12, 4, 22, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 12, 5, 22, 0, 0, 0, time.UTC), end)
}

func TestSameBucket(t *testing.T) {
	assert.True(t, Minute.SameBucket(
		time.Date(2025, 12, 4, 10, 0, 1, 0, time.UTC),
		time.Date(2025, 12, 4, 10, 0, 59, 0, time.UTC),
	))
	assert.False(t, Minute.SameBucket(
		time.Date(2025, 12, 4, 10, 0, 59, 0, time.UTC),
		time.Date(2025, 12, 4, 10, 1, 0, 0, time.UTC),
	))
}

func TestNewCustomDayValidation(t *testing.T) {
	_, err := NewCustomDay(24)
	assert.Error(t, err)
	_, err = NewCustomDay(-1)
	assert.Error(t, err)
}

func TestParseGranularity(t *testing.T) {
	for _, name := range []string{"minute", "hour", "day", "custom-day"} {
		g, err := ParseGranularity(name)
		assert.NoError(t, err)
		assert.Equal(t, Granularity(name), g)
	}
	_, err := ParseGranularity("week")
	assert.Error(t, err)
}
