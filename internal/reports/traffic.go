package reports

import (
	"context"
	"sort"

	"trailmark/internal/attribution"
	"trailmark/internal/sessions"
)

// TrafficSourceRow aggregates one resolved source/medium/campaign
// triple over the window. Sessions carry the attribution of their
// entry event.
type TrafficSourceRow struct {
	Source             string  `json:"source"`
	Medium             string  `json:"medium"`
	Campaign           string  `json:"campaign"`
	UniqueVisitors     int     `json:"unique_visitors"`
	Sessions           int     `json:"sessions"`
	TotalEvents        int     `json:"total_events"`
	Pageviews          int     `json:"pageviews"`
	Conversions        int     `json:"conversions"`
	ConversionRate     float64 `json:"conversion_rate"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
}

type TrafficSourcesReport struct {
	Rows        []TrafficSourceRow `json:"rows"`
	Diagnostics Diagnostics        `json:"diagnostics"`
}

// TrafficSources groups the window's sessions by resolved attribution.
// Rows come back ordered by unique visitors descending, ties broken by
// the source/medium/campaign triple ascending, capped at the
// configured report row limit.
func (s *Service) TrafficSources(ctx context.Context, siteID uint, f Filters) (*TrafficSourcesReport, error) {
	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		attr        attribution.Attribution
		visitors    map[string]struct{}
		sessions    int
		totalEvents int
		pageviews   int
		conversions int
		durationSum int64
	}
	buckets := make(map[string]*bucket)

	for _, sess := range s.reconstruct(w) {
		attr := attribution.Resolve(sess.EntryEvent)
		key := attr.Key()
		b, ok := buckets[key]
		if !ok {
			b = &bucket{attr: attr, visitors: make(map[string]struct{})}
			buckets[key] = b
		}
		b.visitors[sess.VisitorID] = struct{}{}
		b.sessions++
		b.totalEvents += sess.EventCount
		b.pageviews += sess.PageviewCount
		if sess.Converted {
			b.conversions++
		}
		b.durationSum += sess.DurationSeconds
	}

	rows := make([]TrafficSourceRow, 0, len(buckets))
	for _, b := range buckets {
		row := TrafficSourceRow{
			Source:         b.attr.Source,
			Medium:         b.attr.Medium,
			Campaign:       b.attr.Campaign,
			UniqueVisitors: len(b.visitors),
			Sessions:       b.sessions,
			TotalEvents:    b.totalEvents,
			Pageviews:      b.pageviews,
			Conversions:    b.conversions,
			ConversionRate: pct(b.conversions, b.sessions),
		}
		if b.sessions > 0 {
			row.AvgSessionDuration = round2(float64(b.durationSum) / float64(b.sessions))
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UniqueVisitors != rows[j].UniqueVisitors {
			return rows[i].UniqueVisitors > rows[j].UniqueVisitors
		}
		if rows[i].Source != rows[j].Source {
			return rows[i].Source < rows[j].Source
		}
		if rows[i].Medium != rows[j].Medium {
			return rows[i].Medium < rows[j].Medium
		}
		return rows[i].Campaign < rows[j].Campaign
	})

	rows, capped := capRows(rows, s.cfg.ReportRowCap)
	w.diag.RowsReturned = len(rows)
	w.diag.RowsCapped = capped

	return &TrafficSourcesReport{Rows: rows, Diagnostics: w.diag}, nil
}

// sessionsByAttribution resolves each session's entry attribution once;
// shared by the entry/exit-by-source report.
func sessionsByAttribution(sessionList []sessions.Session) map[string][]sessions.Session {
	grouped := make(map[string][]sessions.Session)
	for _, sess := range sessionList {
		attr := attribution.Resolve(sess.EntryEvent)
		grouped[attr.Source] = append(grouped[attr.Source], sess)
	}
	return grouped
}
