// Package reports composes the attribution, session, funnel and cohort
// engines into the named report shapes served to callers. Every report
// runs over one bounded event window read; filters narrow the window
// before any aggregation and never change engine semantics.
package reports

import (
	"context"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"trailmark/internal/attribution"
	"trailmark/internal/config"
	"trailmark/internal/events"
	"trailmark/internal/funnel"
	"trailmark/internal/sessions"
)

type Service struct {
	db          *gorm.DB
	cfg         *config.Config
	logger      *slog.Logger
	conversions sessions.ConversionSet
	regexCache  *funnel.RegexCache
}

func NewService(db *gorm.DB, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		db:          db,
		cfg:         cfg,
		logger:      logger,
		conversions: sessions.NewConversionSet(cfg.ConversionEvents),
		regexCache:  funnel.NewRegexCache(),
	}
}

// Filters narrow the event population a report runs over. All set
// fields combine as a conjunction. Source, Medium and Campaign compare
// against resolved attribution, the rest against raw event columns.
type Filters struct {
	From       time.Time
	To         time.Time
	Source     string
	Medium     string
	Campaign   string
	Country    string
	DeviceType string
	EventType  string
}

// Diagnostics accounts for every row a report dropped or capped so
// results stay auditable.
type Diagnostics struct {
	TotalEventsConsidered int64 `json:"total_events_considered"`
	EventsAfterFilter     int   `json:"events_after_filter"`
	RowsReturned          int   `json:"rows_returned"`
	RowsCapped            bool  `json:"rows_capped"`
}

type window struct {
	events []events.Event
	diag   Diagnostics
}

// fetchWindow performs the single bounded read behind every report:
// push the raw-column filters into the store query, then resolve
// attribution in memory for the source/medium/campaign filters. The
// configured query timeout applies to the read only, not the in-memory
// aggregation that follows.
func (s *Service) fetchWindow(ctx context.Context, siteID uint, f Filters) (*window, error) {
	if siteID == 0 {
		return nil, NewInputError("site id is required")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return nil, NewInputError("date_from must not be after date_to")
	}

	fetchCtx := ctx
	if s.cfg.QueryTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.QueryTimeoutSeconds)*time.Second)
		defer cancel()
	}

	query := events.Query{
		SiteID:     siteID,
		From:       f.From,
		To:         f.To,
		EventType:  f.EventType,
		Country:    f.Country,
		DeviceType: f.DeviceType,
		MaxRows:    s.cfg.MaxEventRows,
	}

	total, err := events.CountEvents(fetchCtx, s.db, query)
	if err != nil {
		s.logger.Error("Error counting events", slog.Any("error", err), slog.Uint64("siteID", uint64(siteID)))
		return nil, &DataUnavailableError{Cause: err}
	}

	evs, err := events.FetchEvents(fetchCtx, s.db, query)
	if err != nil {
		s.logger.Error("Error fetching events", slog.Any("error", err), slog.Uint64("siteID", uint64(siteID)))
		return nil, &DataUnavailableError{Cause: err}
	}

	if f.Source != "" || f.Medium != "" || f.Campaign != "" {
		filtered := evs[:0]
		for _, ev := range evs {
			attr := attribution.Resolve(ev)
			if f.Source != "" && attr.Source != f.Source {
				continue
			}
			if f.Medium != "" && attr.Medium != f.Medium {
				continue
			}
			if f.Campaign != "" && attr.Campaign != f.Campaign {
				continue
			}
			filtered = append(filtered, ev)
		}
		evs = filtered
	}

	return &window{
		events: evs,
		diag: Diagnostics{
			TotalEventsConsidered: total,
			EventsAfterFilter:     len(evs),
		},
	}, nil
}

func (s *Service) reconstruct(w *window) []sessions.Session {
	return sessions.Reconstruct(w.events, s.conversions)
}
