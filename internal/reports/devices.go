package reports

import (
	"context"
	"sort"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"trailmark/internal/events"
	"trailmark/internal/sessions"
)

type DeviceRow struct {
	Name           string  `json:"name"`
	UniqueVisitors int     `json:"unique_visitors"`
	Sessions       int     `json:"sessions"`
	Pageviews      int     `json:"pageviews"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversion_rate"`
}

type DevicesReport struct {
	DeviceTypes      []DeviceRow `json:"device_types"`
	Browsers         []DeviceRow `json:"browsers"`
	OperatingSystems []DeviceRow `json:"operating_systems"`
	Diagnostics      Diagnostics `json:"diagnostics"`
}

// Devices groups sessions by the entry event's device type, browser and
// operating system. Each breakdown is ordered by unique visitors
// descending, ties by name ascending.
func (s *Service) Devices(ctx context.Context, siteID uint, f Filters) (*DevicesReport, error) {
	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}
	sessionList := s.reconstruct(w)

	deviceTypes := groupByDimension(sessionList, func(sess sessions.Session) string {
		return orUnknown(sess.EntryEvent.DeviceType, events.UnknownDevice)
	})
	browsers := groupByDimension(sessionList, func(sess sessions.Session) string {
		return orUnknown(sess.EntryEvent.Browser, events.UnknownBrowser)
	})
	operatingSystems := groupByDimension(sessionList, func(sess sessions.Session) string {
		return orUnknown(sess.EntryEvent.OS, events.UnknownOS)
	})

	deviceTypes, devicesCapped := capRows(deviceTypes, s.cfg.ReportRowCap)
	browsers, browsersCapped := capRows(browsers, s.cfg.ReportRowCap)
	operatingSystems, osCapped := capRows(operatingSystems, s.cfg.ReportRowCap)
	w.diag.RowsReturned = len(deviceTypes) + len(browsers) + len(operatingSystems)
	w.diag.RowsCapped = devicesCapped || browsersCapped || osCapped

	return &DevicesReport{
		DeviceTypes:      deviceTypes,
		Browsers:         browsers,
		OperatingSystems: operatingSystems,
		Diagnostics:      w.diag,
	}, nil
}

func orUnknown(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func groupByDimension(sessionList []sessions.Session, nameOf func(sessions.Session) string) []DeviceRow {
	type bucket struct {
		visitors    map[string]struct{}
		sessions    int
		pageviews   int
		conversions int
	}
	buckets := make(map[string]*bucket)

	for _, sess := range sessionList {
		name := nameOf(sess)
		b, ok := buckets[name]
		if !ok {
			b = &bucket{visitors: make(map[string]struct{})}
			buckets[name] = b
		}
		b.visitors[sess.VisitorID] = struct{}{}
		b.sessions++
		b.pageviews += sess.PageviewCount
		if sess.Converted {
			b.conversions++
		}
	}

	caser := cases.Title(language.AmericanEnglish)

	rows := make([]DeviceRow, 0, len(buckets))
	for name, b := range buckets {
		rows = append(rows, DeviceRow{
			Name:           caser.String(name),
			UniqueVisitors: len(b.visitors),
			Sessions:       b.sessions,
			Pageviews:      b.pageviews,
			Conversions:    b.conversions,
			ConversionRate: pct(b.conversions, b.sessions),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UniqueVisitors != rows[j].UniqueVisitors {
			return rows[i].UniqueVisitors > rows[j].UniqueVisitors
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}
