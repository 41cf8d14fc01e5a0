package reports

import (
	"context"
	"sort"

	"trailmark/internal/sessions"
	"trailmark/internal/timeframe"
)

// PageRow ranks one URL as an entry or exit page. PctChange compares
// Sessions against the preceding period of equal length and is nil
// when the comparison period has no row for the URL.
type PageRow struct {
	PageURL        string   `json:"page_url"`
	Sessions       int      `json:"sessions"`
	UniqueSessions int      `json:"unique_sessions"`
	PctChange      *float64 `json:"pct_change,omitempty"`
}

type EntryExitReport struct {
	EntryPages  []PageRow   `json:"entry_pages"`
	ExitPages   []PageRow   `json:"exit_pages"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// EntryExitPages ranks the URLs sessions entered and left through.
// Entry and exit ranking rely on the reconstructor's deterministic
// tie-break, so equal-timestamp sessions rank identically across runs.
// When compare is true and the filter window is bounded, each row
// carries the percentage change against the preceding period.
func (s *Service) EntryExitPages(ctx context.Context, siteID uint, f Filters, compare bool) (*EntryExitReport, error) {
	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}
	sessionList := s.reconstruct(w)
	entries := rankPages(sessionList, entryURL)
	exits := rankPages(sessionList, exitURL)

	if compare && !f.From.IsZero() && !f.To.IsZero() {
		tf := timeframe.TimeFrame{From: f.From.UTC(), To: f.To.UTC()}
		prev := tf.Previous()
		prevFilters := f
		prevFilters.From = prev.From
		prevFilters.To = prev.To

		pw, err := s.fetchWindow(ctx, siteID, prevFilters)
		if err != nil {
			return nil, err
		}
		prevSessions := s.reconstruct(pw)
		attachComparison(entries, rankPages(prevSessions, entryURL))
		attachComparison(exits, rankPages(prevSessions, exitURL))
	}

	entries, entriesCapped := capRows(entries, s.cfg.PageRowCap)
	exits, exitsCapped := capRows(exits, s.cfg.PageRowCap)
	w.diag.RowsReturned = len(entries) + len(exits)
	w.diag.RowsCapped = entriesCapped || exitsCapped

	return &EntryExitReport{
		EntryPages:  entries,
		ExitPages:   exits,
		Diagnostics: w.diag,
	}, nil
}

func entryURL(sess sessions.Session) string { return sess.EntryEvent.PageURL }
func exitURL(sess sessions.Session) string  { return sess.ExitEvent.PageURL }

func rankPages(sessionList []sessions.Session, urlOf func(sessions.Session) string) []PageRow {
	type bucket struct {
		count      int
		sessionIDs map[string]struct{}
	}
	buckets := make(map[string]*bucket)
	for _, sess := range sessionList {
		url := urlOf(sess)
		if url == "" {
			continue
		}
		b, ok := buckets[url]
		if !ok {
			b = &bucket{sessionIDs: make(map[string]struct{})}
			buckets[url] = b
		}
		b.count++
		b.sessionIDs[sess.SessionID] = struct{}{}
	}

	rows := make([]PageRow, 0, len(buckets))
	for url, b := range buckets {
		rows = append(rows, PageRow{
			PageURL:        url,
			Sessions:       b.count,
			UniqueSessions: len(b.sessionIDs),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Sessions != rows[j].Sessions {
			return rows[i].Sessions > rows[j].Sessions
		}
		return rows[i].PageURL < rows[j].PageURL
	})
	return rows
}

func attachComparison(rows []PageRow, comparison []PageRow) {
	prev := make(map[string]int, len(comparison))
	for _, row := range comparison {
		prev[row.PageURL] = row.Sessions
	}
	for i := range rows {
		if before, ok := prev[rows[i].PageURL]; ok {
			rows[i].PctChange = pctChange(rows[i].Sessions, before)
		}
	}
}

// SourcePageRow ranks one entry URL within one attribution source.
type SourcePageRow struct {
	Source   string `json:"source"`
	PageURL  string `json:"page_url"`
	Sessions int    `json:"sessions"`
}

type EntryPagesBySourceReport struct {
	EntryRows   []SourcePageRow `json:"entry_rows"`
	ExitRows    []SourcePageRow `json:"exit_rows"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}

// EntryPagesBySource breaks entry and exit pages down per resolved
// source. Ordered by sessions descending, ties by source then URL
// ascending.
func (s *Service) EntryPagesBySource(ctx context.Context, siteID uint, f Filters) (*EntryPagesBySourceReport, error) {
	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}

	grouped := sessionsByAttribution(s.reconstruct(w))
	entries := rankPagesBySource(grouped, entryURL)
	exits := rankPagesBySource(grouped, exitURL)

	entries, entriesCapped := capRows(entries, s.cfg.PageRowCap)
	exits, exitsCapped := capRows(exits, s.cfg.PageRowCap)
	w.diag.RowsReturned = len(entries) + len(exits)
	w.diag.RowsCapped = entriesCapped || exitsCapped

	return &EntryPagesBySourceReport{
		EntryRows:   entries,
		ExitRows:    exits,
		Diagnostics: w.diag,
	}, nil
}

func rankPagesBySource(grouped map[string][]sessions.Session, urlOf func(sessions.Session) string) []SourcePageRow {
	var rows []SourcePageRow
	for source, group := range grouped {
		for _, row := range rankPages(group, urlOf) {
			rows = append(rows, SourcePageRow{
				Source:   source,
				PageURL:  row.PageURL,
				Sessions: row.Sessions,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Sessions != rows[j].Sessions {
			return rows[i].Sessions > rows[j].Sessions
		}
		if rows[i].Source != rows[j].Source {
			return rows[i].Source < rows[j].Source
		}
		return rows[i].PageURL < rows[j].PageURL
	})
	return rows
}
