package reports

import (
	"context"
	"sort"
)

type ConversionRow struct {
	EventType      string  `json:"event_type"`
	Count          int     `json:"count"`
	UniqueVisitors int     `json:"unique_visitors"`
	Sessions       int     `json:"sessions"`
	ConversionRate float64 `json:"conversion_rate"`
}

type ConversionsReport struct {
	Rows                  []ConversionRow `json:"rows"`
	TotalSessions         int             `json:"total_sessions"`
	ConvertedSessions     int             `json:"converted_sessions"`
	OverallConversionRate float64         `json:"overall_conversion_rate"`
	Diagnostics           Diagnostics     `json:"diagnostics"`
}

// Conversions breaks the configured conversion events down by type.
// A row's rate is the share of all sessions containing that event at
// least once. Ordered by count descending, ties by event type.
func (s *Service) Conversions(ctx context.Context, siteID uint, f Filters) (*ConversionsReport, error) {
	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		count    int
		visitors map[string]struct{}
		sessions map[string]struct{}
	}
	buckets := make(map[string]*bucket)

	for _, ev := range w.events {
		if !s.conversions.Contains(ev.EventType) {
			continue
		}
		b, ok := buckets[ev.EventType]
		if !ok {
			b = &bucket{visitors: make(map[string]struct{}), sessions: make(map[string]struct{})}
			buckets[ev.EventType] = b
		}
		b.count++
		b.visitors[ev.VisitorID] = struct{}{}
		b.sessions[ev.SessionID] = struct{}{}
	}

	sessionList := s.reconstruct(w)
	converted := 0
	for _, sess := range sessionList {
		if sess.Converted {
			converted++
		}
	}

	rows := make([]ConversionRow, 0, len(buckets))
	for eventType, b := range buckets {
		rows = append(rows, ConversionRow{
			EventType:      eventType,
			Count:          b.count,
			UniqueVisitors: len(b.visitors),
			Sessions:       len(b.sessions),
			ConversionRate: pct(len(b.sessions), len(sessionList)),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].EventType < rows[j].EventType
	})

	rows, capped := capRows(rows, s.cfg.ReportRowCap)
	w.diag.RowsReturned = len(rows)
	w.diag.RowsCapped = capped

	return &ConversionsReport{
		Rows:                  rows,
		TotalSessions:         len(sessionList),
		ConvertedSessions:     converted,
		OverallConversionRate: pct(converted, len(sessionList)),
		Diagnostics:           w.diag,
	}, nil
}
