// Package timeframe provides the time window value object shared by the
// analytics engines: a [From, To] range plus bucket truncation helpers used
// for cohort bucketing and report comparisons.
package timeframe

import (
	"fmt"
	"time"
)

// BucketSize is the granularity a timestamp is truncated to.
type BucketSize string

const (
	BucketSizeDay   BucketSize = "day"
	BucketSizeWeek  BucketSize = "week"
	BucketSizeMonth BucketSize = "month"
)

// TimeFrame represents a period between two points in time. From and To are
// stored in UTC; all bucketing happens on UTC boundaries.
type TimeFrame struct {
	From time.Time
	To   time.Time
}

// New builds a TimeFrame, normalizing both bounds to UTC.
func New(from, to time.Time) (TimeFrame, error) {
	if from.After(to) {
		return TimeFrame{}, fmt.Errorf("from must be before to")
	}
	return TimeFrame{From: from.UTC(), To: to.UTC()}, nil
}

// Duration returns the length of the time frame.
func (tf TimeFrame) Duration() time.Duration {
	return tf.To.Sub(tf.From)
}

// Contains reports whether t falls inside the frame (inclusive bounds).
func (tf TimeFrame) Contains(t time.Time) bool {
	return !t.Before(tf.From) && !t.After(tf.To)
}

// Previous returns the window of equal length immediately preceding this one.
// Used for period-over-period comparisons.
func (tf TimeFrame) Previous() TimeFrame {
	d := tf.Duration()
	return TimeFrame{From: tf.From.Add(-d), To: tf.From}
}

// TruncateToBucket truncates t to the start of its bucket in UTC.
// Weeks are ISO weeks (Monday start); months are calendar months.
func TruncateToBucket(t time.Time, size BucketSize) time.Time {
	t = t.UTC()
	switch size {
	case BucketSizeWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case BucketSizeMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// NextBucket returns the start of the bucket following the one containing t.
func NextBucket(t time.Time, size BucketSize) time.Time {
	start := TruncateToBucket(t, size)
	switch size {
	case BucketSizeWeek:
		return start.AddDate(0, 0, 7)
	case BucketSizeMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// BucketLabel formats the start of the bucket containing t as a stable,
// sortable label: "2006-01-02" for days, ISO "2006-W02" for weeks and
// "2006-01" for months.
func BucketLabel(t time.Time, size BucketSize) string {
	start := TruncateToBucket(t, size)
	switch size {
	case BucketSizeWeek:
		year, week := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case BucketSizeMonth:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}
