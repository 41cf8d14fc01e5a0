package reports_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trailmark/internal/config"
	"trailmark/internal/events"
	"trailmark/internal/funnel"
	"trailmark/internal/reports"
	"trailmark/internal/sites"
	"trailmark/internal/testsupport"
)

var windowStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		MaxEventRows:        10000,
		QueryTimeoutSeconds: 5,
		ReportRowCap:        100,
		PageRowCap:          500,
		ConversionEvents:    []string{events.EventTypeFormSubmit, events.EventTypePurchase},
	}
}

func newTestService(t *testing.T) (*reports.Service, sites.Site, *gorm.DB) {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	site := testsupport.CreateTestSite(t, db, "example.com")
	svc := reports.NewService(db, testConfig(), testsupport.GetLogger())
	return svc, site, db
}

// seedWindow writes three visitors into the first week of June:
// v1 arrives via UTM and converts, v2 arrives via gclid, v3 is direct.
func seedWindow(t *testing.T, db *gorm.DB, siteID uint) {
	t.Helper()
	t0 := windowStart.Add(10 * time.Hour)

	testsupport.CreateTestEvent(t, db, siteID, "v1", "s1", t0,
		testsupport.WithPageURL("https://example.com/home"),
		testsupport.WithUTM("google", "cpc", "spring"))
	testsupport.CreateTestEvent(t, db, siteID, "v1", "s1", t0.Add(time.Minute),
		testsupport.WithPageURL("https://example.com/pricing"),
		testsupport.WithUTM("google", "cpc", "spring"))
	testsupport.CreateTestEvent(t, db, siteID, "v1", "s1", t0.Add(2*time.Minute),
		testsupport.WithEventType(events.EventTypeFormSubmit),
		testsupport.WithPageURL("https://example.com/thanks"),
		testsupport.WithUTM("google", "cpc", "spring"))

	testsupport.CreateTestEvent(t, db, siteID, "v2", "s2", t0.Add(time.Hour),
		testsupport.WithPageURL("https://example.com/landing?gclid=abc123"),
		testsupport.WithDevice("mobile", "safari", "ios"),
		testsupport.WithGeo("DE", "Berlin"))

	testsupport.CreateTestEvent(t, db, siteID, "v3", "s3", t0.Add(2*time.Hour),
		testsupport.WithPageURL("https://example.com/home"))
}

func weekFilters() reports.Filters {
	return reports.Filters{From: windowStart, To: windowStart.AddDate(0, 0, 7)}
}

func TestTrafficSources(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	report, err := svc.TrafficSources(context.Background(), site.ID, weekFilters())
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)

	// Ties on unique visitors break on the grouping key ascending.
	assert.Equal(t, "direct", report.Rows[0].Source)
	assert.Equal(t, "google", report.Rows[1].Source)
	assert.Equal(t, "(not set)", report.Rows[1].Campaign)
	assert.Equal(t, "google", report.Rows[2].Source)
	assert.Equal(t, "spring", report.Rows[2].Campaign)

	utm := report.Rows[2]
	assert.Equal(t, 1, utm.UniqueVisitors)
	assert.Equal(t, 1, utm.Sessions)
	assert.Equal(t, 3, utm.TotalEvents)
	assert.Equal(t, 2, utm.Pageviews)
	assert.Equal(t, 1, utm.Conversions)
	assert.Equal(t, 100.0, utm.ConversionRate)
	assert.Equal(t, 120.0, utm.AvgSessionDuration)

	assert.Equal(t, int64(5), report.Diagnostics.TotalEventsConsidered)
	assert.Equal(t, 5, report.Diagnostics.EventsAfterFilter)
	assert.Equal(t, 3, report.Diagnostics.RowsReturned)
	assert.False(t, report.Diagnostics.RowsCapped)
}

func TestTrafficSourcesSourceFilter(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	f := weekFilters()
	f.Source = "google"
	report, err := svc.TrafficSources(context.Background(), site.ID, f)
	require.NoError(t, err)

	require.Len(t, report.Rows, 2)
	for _, row := range report.Rows {
		assert.Equal(t, "google", row.Source)
	}
	assert.Equal(t, int64(5), report.Diagnostics.TotalEventsConsidered)
	assert.Equal(t, 4, report.Diagnostics.EventsAfterFilter)
}

func TestConversions(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	report, err := svc.Conversions(context.Background(), site.ID, weekFilters())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalSessions)
	assert.Equal(t, 1, report.ConvertedSessions)
	assert.Equal(t, 33.33, report.OverallConversionRate)

	require.Len(t, report.Rows, 1)
	assert.Equal(t, events.EventTypeFormSubmit, report.Rows[0].EventType)
	assert.Equal(t, 1, report.Rows[0].Count)
	assert.Equal(t, 33.33, report.Rows[0].ConversionRate)
}

func TestGeographic(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	report, err := svc.Geographic(context.Background(), site.ID, weekFilters())
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	assert.Equal(t, "US", report.Rows[0].CountryCode)
	assert.Equal(t, "United States", report.Rows[0].CountryName)
	assert.Equal(t, 2, report.Rows[0].UniqueVisitors)
	assert.Equal(t, "Germany", report.Rows[1].CountryName)

	require.Len(t, report.Rows[0].Cities, 1)
	assert.Equal(t, "New York", report.Rows[0].Cities[0].City)
	assert.Equal(t, 2, report.Rows[0].Cities[0].UniqueVisitors)
	require.Len(t, report.Rows[1].Cities, 1)
	assert.Equal(t, "Berlin", report.Rows[1].Cities[0].City)
}

func TestDevices(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	report, err := svc.Devices(context.Background(), site.ID, weekFilters())
	require.NoError(t, err)
	require.Len(t, report.DeviceTypes, 2)
	assert.Equal(t, "Desktop", report.DeviceTypes[0].Name)
	assert.Equal(t, 2, report.DeviceTypes[0].Sessions)
	assert.Equal(t, "Mobile", report.DeviceTypes[1].Name)

	require.Len(t, report.Browsers, 2)
	assert.Equal(t, "Chrome", report.Browsers[0].Name)
	assert.Equal(t, "Safari", report.Browsers[1].Name)

	require.Len(t, report.OperatingSystems, 2)
	assert.Equal(t, "Ios", report.OperatingSystems[1].Name)
}

func TestForms(t *testing.T) {
	svc, site, db := newTestService(t)
	t0 := windowStart.Add(time.Hour)

	for i := 0; i < 4; i++ {
		testsupport.CreateTestEvent(t, db, site.ID, "v1", "s1", t0.Add(time.Duration(i)*time.Minute),
			testsupport.WithEventType(events.EventTypeFormStart),
			testsupport.WithPageURL("https://example.com/contact"))
	}
	testsupport.CreateTestEvent(t, db, site.ID, "v1", "s1", t0.Add(10*time.Minute),
		testsupport.WithEventType(events.EventTypeFormSubmit),
		testsupport.WithPageURL("https://example.com/contact"))

	report, err := svc.Forms(context.Background(), site.ID, weekFilters())
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "https://example.com/contact", report.Rows[0].PageURL)
	assert.Equal(t, 4, report.Rows[0].Starts)
	assert.Equal(t, 1, report.Rows[0].Submits)
	assert.Equal(t, 25.0, report.Rows[0].CompletionRate)
}

func TestEntryExitPages(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	report, err := svc.EntryExitPages(context.Background(), site.ID, weekFilters(), false)
	require.NoError(t, err)

	require.Len(t, report.EntryPages, 2)
	assert.Equal(t, "https://example.com/home", report.EntryPages[0].PageURL)
	assert.Equal(t, 2, report.EntryPages[0].Sessions)
	assert.Nil(t, report.EntryPages[0].PctChange)

	var exitURLs []string
	for _, row := range report.ExitPages {
		exitURLs = append(exitURLs, row.PageURL)
	}
	assert.Contains(t, exitURLs, "https://example.com/thanks")
}

func TestEntryExitPagesComparison(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	// One /home entry in the preceding week; none for /landing.
	prev := windowStart.AddDate(0, 0, -3)
	testsupport.CreateTestEvent(t, db, site.ID, "old", "old-s1", prev,
		testsupport.WithPageURL("https://example.com/home"))

	report, err := svc.EntryExitPages(context.Background(), site.ID, weekFilters(), true)
	require.NoError(t, err)
	require.Len(t, report.EntryPages, 2)

	home := report.EntryPages[0]
	require.NotNil(t, home.PctChange)
	assert.Equal(t, 100.0, *home.PctChange)

	landing := report.EntryPages[1]
	assert.Nil(t, landing.PctChange)
}

func TestEntryPagesBySource(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	report, err := svc.EntryPagesBySource(context.Background(), site.ID, weekFilters())
	require.NoError(t, err)
	require.Len(t, report.EntryRows, 3)
	require.Len(t, report.ExitRows, 3)

	bySource := make(map[string]string)
	for _, row := range report.EntryRows {
		bySource[row.Source] = row.PageURL
	}
	assert.Equal(t, "https://example.com/home", bySource["direct"])
	assert.Equal(t, "https://example.com/landing?gclid=abc123", bySource["google"])

	exitBySource := make(map[string]string)
	for _, row := range report.ExitRows {
		exitBySource[row.Source] = row.PageURL
	}
	assert.Equal(t, "https://example.com/thanks", exitBySource["google"])
}

func TestOverview(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	overview, err := svc.Overview(context.Background(), site.ID, weekFilters(), false)
	require.NoError(t, err)

	assert.Equal(t, 3, overview.Totals.UniqueVisitors)
	assert.Equal(t, 3, overview.Totals.Sessions)
	assert.Equal(t, 4, overview.Totals.Pageviews)
	assert.Equal(t, 5, overview.Totals.TotalEvents)
	assert.Equal(t, 1, overview.Totals.Conversions)
	assert.Equal(t, 33.33, overview.Totals.ConversionRate)
	assert.Equal(t, 66.67, overview.Totals.BounceRate)

	assert.NotEmpty(t, overview.TopSources)
	assert.NotEmpty(t, overview.TopEntryPages)
	assert.NotEmpty(t, overview.TopCountries)
	assert.NotEmpty(t, overview.TopDevices)
	assert.Nil(t, overview.Comparison)
}

func TestOverviewComparison(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	prev := windowStart.AddDate(0, 0, -2)
	testsupport.CreateTestEvent(t, db, site.ID, "old", "old-s1", prev)

	overview, err := svc.Overview(context.Background(), site.ID, weekFilters(), true)
	require.NoError(t, err)
	require.NotNil(t, overview.Comparison)
	assert.Equal(t, 1, overview.Comparison.Sessions)
	assert.Equal(t, 1, overview.Comparison.UniqueVisitors)
}

func TestFunnelAnalysis(t *testing.T) {
	svc, site, db := newTestService(t)
	seedWindow(t, db, site.ID)

	steps := []funnel.Step{
		{Name: "Visited", Kind: funnel.StepKindEvent, Match: events.EventTypePageView},
		{Name: "Submitted", Kind: funnel.StepKindEvent, Match: events.EventTypeFormSubmit},
	}

	report, err := svc.FunnelAnalysis(context.Background(), site.ID, "signup", steps, weekFilters())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Result.Steps[0].TotalVisitors)
	assert.Equal(t, 1, report.Result.Steps[1].TotalVisitors)
	assert.Equal(t, 33.33, report.Result.Overall.OverallConversionRate)
	assert.Equal(t, int64(5), report.Diagnostics.TotalEventsConsidered)
}

func TestFunnelAnalysisRejectsInvalidSteps(t *testing.T) {
	svc, site, _ := newTestService(t)

	_, err := svc.FunnelAnalysis(context.Background(), site.ID, "short",
		[]funnel.Step{{Name: "only", Kind: funnel.StepKindEvent, Match: "pageview"}}, weekFilters())
	require.Error(t, err)
	assert.True(t, reports.IsInputError(err))
}

func TestCohortAnalysis(t *testing.T) {
	svc, site, db := newTestService(t)

	day0 := windowStart.Add(9 * time.Hour)
	testsupport.CreateTestEvent(t, db, site.ID, "v1", "s1", day0)
	testsupport.CreateTestEvent(t, db, site.ID, "v1", "s2", day0.AddDate(0, 0, 1))

	report, err := svc.CohortAnalysis(context.Background(), site.ID, "daily", []int{1}, weekFilters(), 0)
	require.NoError(t, err)
	require.Len(t, report.Analysis.Groups, 1)

	group := report.Analysis.Groups[0]
	assert.Equal(t, "2025-06-01", group.CohortPeriod)
	assert.Equal(t, 1, group.RetentionData[0].VisitorsReturned)
	assert.Equal(t, 100.0, group.RetentionData[0].RetentionRate)
}

func TestCohortAnalysisRejectsBadInterval(t *testing.T) {
	svc, site, _ := newTestService(t)

	_, err := svc.CohortAnalysis(context.Background(), site.ID, "hourly", []int{1}, weekFilters(), 0)
	require.Error(t, err)
	assert.True(t, reports.IsInputError(err))
}

func TestMissingSiteIsInputError(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.TrafficSources(context.Background(), 0, weekFilters())
	require.Error(t, err)
	assert.True(t, reports.IsInputError(err))
	assert.False(t, reports.IsDataUnavailable(err))
}

func TestInvertedDateRangeIsInputError(t *testing.T) {
	svc, site, _ := newTestService(t)

	f := reports.Filters{From: windowStart.AddDate(0, 0, 7), To: windowStart}
	_, err := svc.Overview(context.Background(), site.ID, f, false)
	require.Error(t, err)
	assert.True(t, reports.IsInputError(err))
}

func TestRowBudgetSurfacesAsDataUnavailable(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	site := testsupport.CreateTestSite(t, db, "example.com")

	cfg := testConfig()
	cfg.MaxEventRows = 1
	svc := reports.NewService(db, cfg, testsupport.GetLogger())

	t0 := windowStart.Add(time.Hour)
	testsupport.CreateTestEvent(t, db, site.ID, "v1", "s1", t0)
	testsupport.CreateTestEvent(t, db, site.ID, "v2", "s2", t0.Add(time.Minute))

	_, err := svc.TrafficSources(context.Background(), site.ID, weekFilters())
	require.Error(t, err)
	assert.True(t, reports.IsDataUnavailable(err))
	assert.True(t, errors.Is(err, events.ErrRowBudgetExceeded))
}

func TestEmptyWindowIsNotAnError(t *testing.T) {
	svc, site, _ := newTestService(t)

	overview, err := svc.Overview(context.Background(), site.ID, weekFilters(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, overview.Totals.Sessions)
	assert.Equal(t, 0.0, overview.Totals.ConversionRate)
}
