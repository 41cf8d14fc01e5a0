// Package seeder generates demo traffic: coherent visitor journeys with
// realistic attribution, geography and device mixes, plus conversion
// events. Used by the CLI to produce data the reports can be explored
// against.
package seeder

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"trailmark/internal/events"
	"trailmark/internal/sites"
)

const insertBatchSize = 500

// Seeder handles the demo data seeding process.
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	EventCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, eventCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		EventCount: eventCount,
	}
}

// journeyTemplates are realistic paths visitors take through a site.
var journeyTemplates = [][]string{
	{"/", "/about", "/contact"},
	{"/", "/features", "/pricing", "/signup"},
	{"/", "/blog", "/blog/article-1", "/signup"},
	{"/pricing", "/features", "/signup"},
	{"/", "/products", "/products/widget-a", "/pricing"},
	{"/", "/docs", "/docs/getting-started", "/docs/api-reference"},
	{"/", "/signup"},
	{"/login", "/dashboard", "/settings"},
	{"/blog/article-1", "/about", "/pricing", "/signup"},
}

// trafficSources mirror how visitors actually arrive: UTM-tagged
// campaigns, ad click-ids resolved from the landing URL, and direct.
var trafficSources = []struct {
	utmSource   string
	utmMedium   string
	utmCampaign string
	landingArgs string
}{
	{utmSource: "google", utmMedium: "cpc", utmCampaign: "spring_sale"},
	{utmSource: "newsletter", utmMedium: "email", utmCampaign: "weekly_digest"},
	{utmSource: "producthunt", utmMedium: "referral"},
	{landingArgs: "?gclid=" + randomToken()},
	{landingArgs: "?fbclid=" + randomToken()},
	{landingArgs: "?msclkid=" + randomToken()},
	{}, // direct
	{}, // direct, weighted double
}

var countries = []struct {
	code string
	city string
}{
	{"US", "New York"}, {"US", "San Francisco"}, {"DE", "Berlin"},
	{"GB", "London"}, {"FR", "Paris"}, {"BR", "Sao Paulo"},
	{"JP", "Tokyo"}, {"IN", "Bengaluru"},
}

var devices = []struct {
	deviceType string
	browser    string
	os         string
}{
	{"desktop", "chrome", "windows"},
	{"desktop", "firefox", "linux"},
	{"desktop", "safari", "macos"},
	{"mobile", "safari", "ios"},
	{"mobile", "chrome", "android"},
	{"tablet", "safari", "ios"},
}

var conversionEvents = []string{
	events.EventTypeFormSubmit,
	events.EventTypePurchase,
	events.EventTypeSignUp,
	events.EventTypeLeadForm,
}

func randomToken() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	token := make([]byte, 12)
	for i := range token {
		token[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(token)
}

// Seed creates the given domains when missing and fills each with
// generated traffic, splitting the configured event count evenly.
func (s *Seeder) Seed(ctx context.Context, domains []string) error {
	if len(domains) == 0 {
		return fmt.Errorf("at least one domain is required")
	}

	perSite := s.EventCount / len(domains)
	if perSite == 0 {
		perSite = 1
	}

	for _, domain := range domains {
		site, err := sites.FindOrCreateSite(s.DBManager.GetConnection(), domain)
		if err != nil {
			return fmt.Errorf("failed to prepare site %s: %w", domain, err)
		}
		if err := s.generateTraffic(ctx, site, perSite); err != nil {
			return fmt.Errorf("failed to seed %s: %w", domain, err)
		}
	}
	return nil
}

// SeedDomain seeds an existing domain with the full event count.
func (s *Seeder) SeedDomain(ctx context.Context, domain string) error {
	start := time.Now()
	s.Logger.Info("Seeding domain", slog.String("domain", domain), slog.Int("eventCount", s.EventCount))

	site, err := sites.GetSiteByDomain(s.DBManager.GetConnection(), domain)
	if err != nil {
		return err
	}

	if err := s.generateTraffic(ctx, site, s.EventCount); err != nil {
		return fmt.Errorf("failed to generate data for %s: %w", domain, err)
	}

	s.Logger.Info("Domain seeding completed",
		slog.String("domain", domain), slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Seeder) generateTraffic(ctx context.Context, site *sites.Site, targetEvents int) error {
	avgEventsPerSession := 4
	numSessions := targetEvents / avgEventsPerSession
	if numSessions < 10 {
		numSessions = 10
	}

	var batch []events.Event
	created := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		db := s.DBManager.GetConnection()
		rows := batch
		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			return tx.CreateInBatches(rows, insertBatchSize).Error
		})
		if err != nil {
			return fmt.Errorf("failed to insert event batch: %w", err)
		}
		created += len(rows)
		batch = batch[:0]
		return nil
	}

	for session := 0; session < numSessions; session++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		batch = append(batch, s.generateSession(site, session)...)
		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	s.Logger.Info("Generated journey-based events for site",
		slog.String("domain", site.Domain),
		slog.Int("sessions", numSessions),
		slog.Int("totalEvents", created))
	return nil
}

func (s *Seeder) generateSession(site *sites.Site, n int) []events.Event {
	journey := journeyTemplates[rand.IntN(len(journeyTemplates))]
	source := trafficSources[rand.IntN(len(trafficSources))]
	geo := countries[rand.IntN(len(countries))]
	device := devices[rand.IntN(len(devices))]

	// Roughly a third of sessions belong to returning visitors.
	visitorID := fmt.Sprintf("seed-visitor-%06d", rand.IntN(numVisitorsFor(n)))
	sessionID := fmt.Sprintf("seed-session-%06d-%s", n, randomToken()[:4])

	baseTime := time.Now().UTC().Add(-time.Duration(rand.IntN(60*24)) * time.Hour)
	cumulative := time.Duration(0)

	var evs []events.Event
	for pageIndex, path := range journey {
		if pageIndex > 0 {
			cumulative += time.Duration(rand.IntN(110)+10) * time.Second
		}

		pageURL := fmt.Sprintf("https://%s%s", site.Domain, path)
		if pageIndex == 0 && source.landingArgs != "" {
			pageURL += source.landingArgs
		}

		evs = append(evs, events.Event{
			SiteID:      site.ID,
			VisitorID:   visitorID,
			SessionID:   sessionID,
			EventType:   events.EventTypePageView,
			PageURL:     pageURL,
			UTMSource:   source.utmSource,
			UTMMedium:   source.utmMedium,
			UTMCampaign: source.utmCampaign,
			Country:     geo.code,
			City:        geo.city,
			DeviceType:  device.deviceType,
			Browser:     device.browser,
			OS:          device.os,
			Timestamp:   baseTime.Add(cumulative),
			CreatedAt:   time.Now().UTC(),
		})
	}

	// A fifth of sessions convert at the end of the journey.
	if rand.Float64() < 0.2 {
		last := evs[len(evs)-1]
		last.EventType = conversionEvents[rand.IntN(len(conversionEvents))]
		last.Timestamp = last.Timestamp.Add(time.Duration(rand.IntN(50)+10) * time.Second)
		evs = append(evs, last)
	}

	return evs
}

// numVisitorsFor shrinks the visitor pool relative to the session count
// so some visitors come back and cohort retention has something to
// measure.
func numVisitorsFor(sessionIndex int) int {
	pool := (sessionIndex + 1) * 2 / 3
	if pool < 1 {
		return 1
	}
	return pool
}
