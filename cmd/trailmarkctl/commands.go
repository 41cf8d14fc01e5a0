package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"trailmark/internal"
	"trailmark/internal/events"
	"trailmark/internal/logging"
	"trailmark/internal/seeder"
	"trailmark/internal/sites"
)

// MigrateCommand runs the database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}
	return app.DBManager.MigrateDatabase()
}

// SeedCommand fills one or more sites with generated demo traffic
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds demo traffic into the given domains" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	eventCount := fs.Int("events", 10000, "total number of events to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	domains := fs.Args()
	if len(domains) == 0 {
		domains = []string{"example.com"}
	}

	clog := logging.FromConfig(app.Config, "trailmarkctl.log")
	clog.WithField("domains", strings.Join(domains, ",")).Info("Seeding demo traffic")

	s := seeder.NewSeeder(app.DBManager, app.Logger, *eventCount)
	if err := s.Seed(ctx, domains); err != nil {
		return err
	}

	clog.Info("Seeding finished")
	return nil
}

// StatusCommand prints what the database currently holds
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	db := app.DBManager.GetConnection()

	var siteList []sites.Site
	if err := db.Order("id asc").Find(&siteList).Error; err != nil {
		return fmt.Errorf("failed to list sites: %w", err)
	}

	fmt.Printf("Database: %s\n", app.Config.GetDatabasePath())
	fmt.Printf("Sites:    %d\n", len(siteList))

	for _, site := range siteList {
		count, err := events.CountEvents(ctx, db, events.Query{SiteID: site.ID})
		if err != nil {
			return fmt.Errorf("failed to count events for %s: %w", site.Domain, err)
		}
		first, err := events.FirstEventTime(db, site.ID)
		if err != nil {
			return err
		}
		firstLabel := "-"
		if !first.IsZero() {
			firstLabel = first.Format("2006-01-02")
		}
		fmt.Printf("  %-30s events=%-8d first_event=%s\n", site.Domain, count, firstLabel)
	}
	return nil
}
