package timeframe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailmark/internal/timeframe"
)

func TestNewRejectsInvertedRange(t *testing.T) {
	from := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := timeframe.New(from, to)
	require.Error(t, err)
}

func TestNewNormalizesToUTC(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	from := time.Date(2025, 6, 1, 12, 0, 0, 0, berlin)
	to := time.Date(2025, 6, 2, 12, 0, 0, 0, berlin)

	tf, err := timeframe.New(from, to)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, tf.From.Location())
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), tf.From)
}

func TestPrevious(t *testing.T) {
	tf, err := timeframe.New(
		time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	prev := tf.Previous()
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), prev.From)
	assert.Equal(t, tf.From, prev.To)
	assert.Equal(t, tf.Duration(), prev.Duration())
}

func TestTruncateToBucket(t *testing.T) {
	// Wednesday 2025-06-04 15:42 UTC.
	ts := time.Date(2025, 6, 4, 15, 42, 13, 0, time.UTC)

	tests := []struct {
		name string
		size timeframe.BucketSize
		want time.Time
	}{
		{"day", timeframe.BucketSizeDay, time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)},
		{"week starts monday", timeframe.BucketSizeWeek, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
		{"month", timeframe.BucketSizeMonth, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeframe.TruncateToBucket(ts, tt.size))
		})
	}
}

func TestTruncateToBucketSundayBelongsToPrecedingWeek(t *testing.T) {
	sunday := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		timeframe.TruncateToBucket(sunday, timeframe.BucketSizeWeek))
}

func TestBucketLabel(t *testing.T) {
	ts := time.Date(2025, 6, 4, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-06-04", timeframe.BucketLabel(ts, timeframe.BucketSizeDay))
	assert.Equal(t, "2025-W23", timeframe.BucketLabel(ts, timeframe.BucketSizeWeek))
	assert.Equal(t, "2025-06", timeframe.BucketLabel(ts, timeframe.BucketSizeMonth))
}

func TestNextBucket(t *testing.T) {
	ts := time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		timeframe.NextBucket(ts, timeframe.BucketSizeDay))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		timeframe.NextBucket(ts, timeframe.BucketSizeMonth))
}

type fixedTimeProvider struct {
	now time.Time
}

func (p *fixedTimeProvider) Now() time.Time { return p.now }

func TestParserDefaults(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	parser := timeframe.NewParser(&fixedTimeProvider{now: now})

	tf, err := parser.Parse("", "")
	require.NoError(t, err)
	assert.Equal(t, now, tf.To)
	assert.Equal(t, now.Truncate(24*time.Hour).AddDate(0, 0, -timeframe.DefaultWindowDays), tf.From)
}

func TestParserExplicitDates(t *testing.T) {
	parser := timeframe.NewParser(&fixedTimeProvider{now: time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)})

	tf, err := parser.Parse("2025-06-01", "2025-06-07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), tf.From)

	// End dates cover the whole day.
	assert.Equal(t, 2025, tf.To.Year())
	assert.Equal(t, 7, tf.To.Day())
	assert.Equal(t, 23, tf.To.Hour())
	assert.True(t, tf.Contains(time.Date(2025, 6, 7, 23, 59, 0, 0, time.UTC)))
}

func TestParserRejectsMalformedDates(t *testing.T) {
	parser := timeframe.NewParser()

	_, err := parser.Parse("01-06-2025", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid 'from' date")

	_, err = parser.Parse("", "junk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid 'to' date")
}
