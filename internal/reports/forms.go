package reports

import (
	"context"
	"sort"

	"trailmark/internal/events"
)

type FormRow struct {
	PageURL        string  `json:"page_url"`
	Starts         int     `json:"starts"`
	Submits        int     `json:"submits"`
	CompletionRate float64 `json:"completion_rate"`
}

type FormsReport struct {
	Rows        []FormRow   `json:"rows"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Forms pairs form_start and form_submit events per page URL.
// CompletionRate is submits over starts, 0 when a page only ever saw
// submits. Ordered by starts descending, ties by page URL ascending.
func (s *Service) Forms(ctx context.Context, siteID uint, f Filters) (*FormsReport, error) {
	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		starts  int
		submits int
	}
	buckets := make(map[string]*bucket)

	for _, ev := range w.events {
		if ev.EventType != events.EventTypeFormStart && ev.EventType != events.EventTypeFormSubmit {
			continue
		}
		url := ev.PageURL
		if url == "" {
			url = "(unknown)"
		}
		b, ok := buckets[url]
		if !ok {
			b = &bucket{}
			buckets[url] = b
		}
		if ev.EventType == events.EventTypeFormStart {
			b.starts++
		} else {
			b.submits++
		}
	}

	rows := make([]FormRow, 0, len(buckets))
	for url, b := range buckets {
		rows = append(rows, FormRow{
			PageURL:        url,
			Starts:         b.starts,
			Submits:        b.submits,
			CompletionRate: pct(b.submits, b.starts),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Starts != rows[j].Starts {
			return rows[i].Starts > rows[j].Starts
		}
		return rows[i].PageURL < rows[j].PageURL
	})

	rows, capped := capRows(rows, s.cfg.PageRowCap)
	w.diag.RowsReturned = len(rows)
	w.diag.RowsCapped = capped

	return &FormsReport{Rows: rows, Diagnostics: w.diag}, nil
}
