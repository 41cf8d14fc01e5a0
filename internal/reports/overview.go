package reports

import (
	"context"
	"log/slog"

	"trailmark/internal/pkg/async"
	"trailmark/internal/sessions"
	"trailmark/internal/timeframe"
)

const overviewSectionRows = 10

type Totals struct {
	UniqueVisitors     int     `json:"unique_visitors"`
	Sessions           int     `json:"sessions"`
	Pageviews          int     `json:"pageviews"`
	TotalEvents        int     `json:"total_events"`
	Conversions        int     `json:"conversions"`
	ConversionRate     float64 `json:"conversion_rate"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
	BounceRate         float64 `json:"bounce_rate"`
}

type Overview struct {
	Totals        Totals             `json:"totals"`
	TopSources    []TrafficSourceRow `json:"top_sources"`
	TopEntryPages []PageRow          `json:"top_entry_pages"`
	TopCountries  []GeoRow           `json:"top_countries"`
	TopDevices    []DeviceRow        `json:"top_devices"`
	Comparison    *Totals            `json:"comparison,omitempty"`
	Diagnostics   Diagnostics        `json:"diagnostics"`
}

// Overview assembles the headline report: window totals plus the top
// slice of each breakdown, computed concurrently. When compare is true
// and the window is bounded, Comparison carries the totals of the
// preceding period of equal length.
func (s *Service) Overview(ctx context.Context, siteID uint, f Filters, compare bool) (*Overview, error) {
	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}
	sessionList := s.reconstruct(w)

	tasks := []async.Task{
		{
			Name: "totals",
			Execute: func() (interface{}, error) {
				return computeTotals(sessionList), nil
			},
		},
		{
			Name: "topSources",
			Execute: func() (interface{}, error) {
				report, err := s.TrafficSources(ctx, siteID, f)
				if err != nil {
					return nil, err
				}
				rows, _ := capRows(report.Rows, overviewSectionRows)
				return rows, nil
			},
		},
		{
			Name: "topEntryPages",
			Execute: func() (interface{}, error) {
				rows, _ := capRows(rankPages(sessionList, entryURL), overviewSectionRows)
				return rows, nil
			},
		},
		{
			Name: "topCountries",
			Execute: func() (interface{}, error) {
				report, err := s.Geographic(ctx, siteID, f)
				if err != nil {
					return nil, err
				}
				rows, _ := capRows(report.Rows, overviewSectionRows)
				return rows, nil
			},
		},
		{
			Name: "topDevices",
			Execute: func() (interface{}, error) {
				report, err := s.Devices(ctx, siteID, f)
				if err != nil {
					return nil, err
				}
				rows, _ := capRows(report.DeviceTypes, overviewSectionRows)
				return rows, nil
			},
		},
	}

	if compare && !f.From.IsZero() && !f.To.IsZero() {
		tasks = append(tasks, async.Task{
			Name: "comparison",
			Execute: func() (interface{}, error) {
				tf := timeframe.TimeFrame{From: f.From.UTC(), To: f.To.UTC()}
				prev := tf.Previous()
				prevFilters := f
				prevFilters.From = prev.From
				prevFilters.To = prev.To

				pw, err := s.fetchWindow(ctx, siteID, prevFilters)
				if err != nil {
					return nil, err
				}
				return computeTotals(s.reconstruct(pw)), nil
			},
		})
	}

	pool := async.NewPool(len(tasks))
	results := pool.Execute(ctx, tasks)
	for name, result := range results {
		if result.Err != nil {
			s.logger.Error("Error computing overview section",
				slog.String("section", name), slog.Any("error", result.Err))
			return nil, result.Err
		}
	}

	overview := &Overview{Diagnostics: w.diag}
	overview.Diagnostics.RowsReturned = len(sessionList)
	if totals, ok := results["totals"].Data.(Totals); ok {
		overview.Totals = totals
	}
	if rows, ok := results["topSources"].Data.([]TrafficSourceRow); ok {
		overview.TopSources = rows
	}
	if rows, ok := results["topEntryPages"].Data.([]PageRow); ok {
		overview.TopEntryPages = rows
	}
	if rows, ok := results["topCountries"].Data.([]GeoRow); ok {
		overview.TopCountries = rows
	}
	if rows, ok := results["topDevices"].Data.([]DeviceRow); ok {
		overview.TopDevices = rows
	}
	if totals, ok := results["comparison"].Data.(Totals); ok {
		overview.Comparison = &totals
	}
	return overview, nil
}

func computeTotals(sessionList []sessions.Session) Totals {
	totals := Totals{Sessions: len(sessionList)}

	visitors := make(map[string]struct{})
	bounces := 0
	var durationSum int64
	for _, sess := range sessionList {
		visitors[sess.VisitorID] = struct{}{}
		totals.Pageviews += sess.PageviewCount
		totals.TotalEvents += sess.EventCount
		if sess.Converted {
			totals.Conversions++
		}
		if sess.PageviewCount <= 1 {
			bounces++
		}
		durationSum += sess.DurationSeconds
	}

	totals.UniqueVisitors = len(visitors)
	totals.ConversionRate = pct(totals.Conversions, totals.Sessions)
	totals.BounceRate = pct(bounces, totals.Sessions)
	if totals.Sessions > 0 {
		totals.AvgSessionDuration = round2(float64(durationSum) / float64(totals.Sessions))
	}
	return totals
}
