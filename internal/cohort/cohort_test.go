package cohort_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailmark/internal/cohort"
	"trailmark/internal/events"
)

func activity(visitor string, at time.Time) events.Event {
	return events.Event{
		SiteID: 1, VisitorID: visitor, SessionID: visitor + "-s",
		EventType: events.EventTypePageView, Timestamp: at,
	}
}

func TestAnalyzeWeeklyRetention(t *testing.T) {
	// Week of Monday 2025-06-02: 100 visitors first seen, 25 of them
	// active again exactly 7 days after the cohort start.
	monday := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	var evs []events.Event
	for i := 0; i < 100; i++ {
		v := fmt.Sprintf("visitor-%03d", i)
		evs = append(evs, activity(v, monday.Add(time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 25; i++ {
		v := fmt.Sprintf("visitor-%03d", i)
		evs = append(evs, activity(v, monday.AddDate(0, 0, 7).Add(10*time.Hour)))
	}

	analysis, err := cohort.Analyze(cohort.IntervalWeekly, []int{7, 90}, evs, 0)
	require.NoError(t, err)
	require.Len(t, analysis.Groups, 1)
	assert.Equal(t, 1, analysis.TotalCohorts)

	group := analysis.Groups[0]
	assert.Equal(t, "2025-W23", group.CohortPeriod)
	assert.Equal(t, 100, group.CohortSize)

	day7 := group.RetentionData[0]
	assert.Equal(t, 7, day7.Period)
	assert.Equal(t, 25, day7.VisitorsReturned)
	assert.Equal(t, 25.0, day7.RetentionRate)

	day90 := group.RetentionData[1]
	assert.Equal(t, 0, day90.VisitorsReturned)
	assert.Equal(t, 0.0, day90.RetentionRate)
}

func TestAnalyzeExactDayPolicy(t *testing.T) {
	// Activity on day 8 does not count toward the day-7 offset.
	day0 := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	evs := []events.Event{
		activity("v1", day0),
		activity("v1", day0.AddDate(0, 0, 8)),
	}

	analysis, err := cohort.Analyze(cohort.IntervalDaily, []int{7, 8}, evs, 0)
	require.NoError(t, err)
	require.NotEmpty(t, analysis.Groups)

	group := analysis.Groups[len(analysis.Groups)-1]
	assert.Equal(t, "2025-06-02", group.CohortPeriod)
	assert.Equal(t, 0, group.RetentionData[0].VisitorsReturned)
	assert.Equal(t, 1, group.RetentionData[1].VisitorsReturned)
	assert.Equal(t, 100.0, group.RetentionData[1].RetentionRate)
}

func TestAnalyzePartitionsVisitors(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var evs []events.Event
	for i := 0; i < 30; i++ {
		v := fmt.Sprintf("v%d", i)
		evs = append(evs, activity(v, base.AddDate(0, 0, i)))
		evs = append(evs, activity(v, base.AddDate(0, 0, i).Add(time.Hour)))
	}

	analysis, err := cohort.Analyze(cohort.IntervalDaily, []int{1}, evs, 0)
	require.NoError(t, err)

	sum := 0
	for _, group := range analysis.Groups {
		sum += group.CohortSize
	}
	assert.Equal(t, 30, sum)
	assert.Equal(t, 30, analysis.TotalCohorts)
}

func TestAnalyzeCapsGroupsButNotTotal(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var evs []events.Event
	for i := 0; i < 10; i++ {
		evs = append(evs, activity(fmt.Sprintf("v%d", i), base.AddDate(0, 0, i)))
	}

	analysis, err := cohort.Analyze(cohort.IntervalDaily, []int{1}, evs, 3)
	require.NoError(t, err)
	assert.Len(t, analysis.Groups, 3)
	assert.Equal(t, 10, analysis.TotalCohorts)

	// Most recent first.
	assert.Equal(t, "2025-06-10", analysis.Groups[0].CohortPeriod)
	assert.Equal(t, "2025-06-09", analysis.Groups[1].CohortPeriod)
}

func TestAnalyzeMonthlyBuckets(t *testing.T) {
	evs := []events.Event{
		activity("may", time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC)),
		activity("june", time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)),
	}

	analysis, err := cohort.Analyze(cohort.IntervalMonthly, []int{1}, evs, 0)
	require.NoError(t, err)
	require.Len(t, analysis.Groups, 2)
	assert.Equal(t, "2025-06", analysis.Groups[0].CohortPeriod)
	assert.Equal(t, "2025-05", analysis.Groups[1].CohortPeriod)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	_, err := cohort.Analyze("hourly", []int{1}, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown interval type")

	_, err = cohort.Analyze(cohort.IntervalDaily, nil, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one retention period")
}

func TestAnalyzeEmptyWindow(t *testing.T) {
	analysis, err := cohort.Analyze(cohort.IntervalWeekly, []int{7}, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, analysis.Groups)
	assert.Equal(t, 0, analysis.TotalCohorts)
}
