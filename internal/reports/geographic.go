package reports

import (
	"context"
	"sort"

	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"trailmark/internal/events"
)

type GeoRow struct {
	CountryCode    string    `json:"country_code"`
	CountryName    string    `json:"country_name"`
	UniqueVisitors int       `json:"unique_visitors"`
	Sessions       int       `json:"sessions"`
	Pageviews      int       `json:"pageviews"`
	Conversions    int       `json:"conversions"`
	ConversionRate float64   `json:"conversion_rate"`
	Cities         []CityRow `json:"cities"`
}

// CityRow is the per-city drill-down inside a country row.
type CityRow struct {
	City           string `json:"city"`
	UniqueVisitors int    `json:"unique_visitors"`
	Sessions       int    `json:"sessions"`
}

type GeographicReport struct {
	Rows        []GeoRow    `json:"rows"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// Geographic groups sessions by the entry event's country. Country
// codes resolve to common names via the gountries dataset; codes the
// dataset does not know are upper-cased as-is. Each row carries a
// per-city drill-down. Ordered by unique visitors descending, ties by
// country code ascending.
func (s *Service) Geographic(ctx context.Context, siteID uint, f Filters) (*GeographicReport, error) {
	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}

	type cityBucket struct {
		visitors map[string]struct{}
		sessions int
	}
	type bucket struct {
		visitors    map[string]struct{}
		sessions    int
		pageviews   int
		conversions int
		cities      map[string]*cityBucket
	}
	buckets := make(map[string]*bucket)

	for _, sess := range s.reconstruct(w) {
		code := sess.EntryEvent.Country
		if code == "" {
			code = events.UnknownCountry
		}
		b, ok := buckets[code]
		if !ok {
			b = &bucket{
				visitors: make(map[string]struct{}),
				cities:   make(map[string]*cityBucket),
			}
			buckets[code] = b
		}
		b.visitors[sess.VisitorID] = struct{}{}
		b.sessions++
		b.pageviews += sess.PageviewCount
		if sess.Converted {
			b.conversions++
		}

		city := sess.EntryEvent.City
		if city == "" {
			city = "(unknown)"
		}
		cb, ok := b.cities[city]
		if !ok {
			cb = &cityBucket{visitors: make(map[string]struct{})}
			b.cities[city] = cb
		}
		cb.visitors[sess.VisitorID] = struct{}{}
		cb.sessions++
	}

	caser := cases.Upper(language.AmericanEnglish)
	countries := gountries.New()

	rows := make([]GeoRow, 0, len(buckets))
	for code, b := range buckets {
		name := "Unknown"
		if code != events.UnknownCountry {
			if country, err := countries.FindCountryByAlpha(code); err == nil {
				name = country.Name.Common
			} else {
				name = caser.String(code)
			}
		}
		cities := make([]CityRow, 0, len(b.cities))
		for city, cb := range b.cities {
			cities = append(cities, CityRow{
				City:           city,
				UniqueVisitors: len(cb.visitors),
				Sessions:       cb.sessions,
			})
		}
		sort.Slice(cities, func(i, j int) bool {
			if cities[i].UniqueVisitors != cities[j].UniqueVisitors {
				return cities[i].UniqueVisitors > cities[j].UniqueVisitors
			}
			return cities[i].City < cities[j].City
		})

		rows = append(rows, GeoRow{
			CountryCode:    code,
			CountryName:    name,
			UniqueVisitors: len(b.visitors),
			Sessions:       b.sessions,
			Pageviews:      b.pageviews,
			Conversions:    b.conversions,
			ConversionRate: pct(b.conversions, b.sessions),
			Cities:         cities,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].UniqueVisitors != rows[j].UniqueVisitors {
			return rows[i].UniqueVisitors > rows[j].UniqueVisitors
		}
		return rows[i].CountryCode < rows[j].CountryCode
	})

	rows, capped := capRows(rows, s.cfg.ReportRowCap)
	w.diag.RowsReturned = len(rows)
	w.diag.RowsCapped = capped

	return &GeographicReport{Rows: rows, Diagnostics: w.diag}, nil
}
