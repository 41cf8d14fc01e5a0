package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"trailmark/internal"
	"trailmark/internal/cohort"
	"trailmark/internal/funnel"
	"trailmark/internal/reports"
	"trailmark/internal/sites"
	"trailmark/internal/timeframe"
)

// reportFlags are the filter flags shared by the report-producing
// commands.
type reportFlags struct {
	site     string
	from     string
	to       string
	source   string
	medium   string
	campaign string
	country  string
	device   string
	event    string
}

func (rf *reportFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&rf.site, "site", "", "site domain (defaults to the first site)")
	fs.StringVar(&rf.from, "from", "", "start date, YYYY-MM-DD")
	fs.StringVar(&rf.to, "to", "", "end date, YYYY-MM-DD")
	fs.StringVar(&rf.source, "source", "", "filter by resolved source")
	fs.StringVar(&rf.medium, "medium", "", "filter by resolved medium")
	fs.StringVar(&rf.campaign, "campaign", "", "filter by resolved campaign")
	fs.StringVar(&rf.country, "country", "", "filter by country code")
	fs.StringVar(&rf.device, "device", "", "filter by device type")
	fs.StringVar(&rf.event, "event", "", "filter by event type")
}

func (rf *reportFlags) resolve(app *internal.Application) (uint, reports.Filters, error) {
	var site *sites.Site
	var err error
	db := app.DBManager.GetConnection()
	if rf.site != "" {
		site, err = sites.GetSiteByDomain(db, rf.site)
	} else {
		site, err = sites.GetFirstSite(db)
	}
	if err != nil {
		return 0, reports.Filters{}, fmt.Errorf("failed to resolve site: %w", err)
	}

	tf, err := timeframe.NewParser().Parse(rf.from, rf.to)
	if err != nil {
		return 0, reports.Filters{}, err
	}

	return site.ID, reports.Filters{
		From:       tf.From,
		To:         tf.To,
		Source:     rf.source,
		Medium:     rf.medium,
		Campaign:   rf.campaign,
		Country:    rf.country,
		DeviceType: rf.device,
		EventType:  rf.event,
	}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReportCommand runs one of the named aggregate reports
type ReportCommand struct{}

func (c *ReportCommand) Name() string { return "report" }
func (c *ReportCommand) Description() string {
	return "Runs a report: overview|traffic|conversions|geo|devices|forms|pages|entry-by-source"
}

func (c *ReportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <name> [flags]", c.Name())
	}
	name := strings.ToLower(args[0])

	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	var rf reportFlags
	rf.register(fs)
	compare := fs.Bool("compare", false, "include previous-period comparison")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	siteID, filters, err := rf.resolve(app)
	if err != nil {
		return err
	}

	var result any
	switch name {
	case "overview":
		result, err = app.Reports.Overview(ctx, siteID, filters, *compare)
	case "traffic":
		result, err = app.Reports.TrafficSources(ctx, siteID, filters)
	case "conversions":
		result, err = app.Reports.Conversions(ctx, siteID, filters)
	case "geo":
		result, err = app.Reports.Geographic(ctx, siteID, filters)
	case "devices":
		result, err = app.Reports.Devices(ctx, siteID, filters)
	case "forms":
		result, err = app.Reports.Forms(ctx, siteID, filters)
	case "pages":
		result, err = app.Reports.EntryExitPages(ctx, siteID, filters, *compare)
	case "entry-by-source":
		result, err = app.Reports.EntryPagesBySource(ctx, siteID, filters)
	default:
		return fmt.Errorf("unknown report %q", name)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

// FunnelCommand saves and runs funnel definitions
type FunnelCommand struct{}

func (c *FunnelCommand) Name() string { return "funnel" }
func (c *FunnelCommand) Description() string {
	return "Runs a funnel from a YAML file or a saved definition"
}

func (c *FunnelCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	var rf reportFlags
	rf.register(fs)
	file := fs.String("file", "", "funnel definition YAML file")
	id := fs.Uint("id", 0, "saved funnel definition id")
	save := fs.Bool("save", false, "persist the definition from -file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	siteID, filters, err := rf.resolve(app)
	if err != nil {
		return err
	}
	db := app.DBManager.GetConnection()

	var name string
	var steps []funnel.Step
	switch {
	case *file != "":
		def, err := funnel.LoadDefinitionFile(*file)
		if err != nil {
			return err
		}
		name, steps = def.Name, def.Steps
		if *save {
			saved, err := funnel.CreateDefinition(db, siteID, def.Name, def.Steps)
			if err != nil {
				return err
			}
			fmt.Printf("Saved funnel definition %d (%s)\n", saved.ID, saved.Name)
		}
	case *id != 0:
		def, err := funnel.GetDefinitionByID(db, *id)
		if err != nil {
			return err
		}
		name = def.Name
		steps, err = def.StepList()
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either -file or -id is required")
	}

	report, err := app.Reports.FunnelAnalysis(ctx, siteID, name, steps, filters)
	if err != nil {
		return err
	}
	return printJSON(report)
}

// CohortCommand saves and runs cohort retention analyses
type CohortCommand struct{}

func (c *CohortCommand) Name() string { return "cohort" }
func (c *CohortCommand) Description() string {
	return "Runs retention analysis from a YAML file, a saved definition or flags"
}

func (c *CohortCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	var rf reportFlags
	rf.register(fs)
	file := fs.String("file", "", "cohort definition YAML file")
	id := fs.Uint("id", 0, "saved cohort definition id")
	save := fs.Bool("save", false, "persist the definition from -file")
	interval := fs.String("interval", "weekly", "cohort interval: daily|weekly|monthly")
	periodsArg := fs.String("periods", "1,7,14,30", "comma-separated day offsets")
	maxCohorts := fs.Int("max", 0, "cap the number of cohorts returned (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	siteID, filters, err := rf.resolve(app)
	if err != nil {
		return err
	}
	db := app.DBManager.GetConnection()

	intervalType := cohort.IntervalType(*interval)
	var periods []int

	switch {
	case *file != "":
		def, err := cohort.LoadDefinitionFile(*file)
		if err != nil {
			return err
		}
		intervalType = def.IntervalType
		periods = def.RetentionPeriods
		if *save {
			saved, err := cohort.CreateDefinition(db, siteID, def)
			if err != nil {
				return err
			}
			fmt.Printf("Saved cohort definition %d (%s)\n", saved.ID, saved.Name)
		}
	case *id != 0:
		def, err := cohort.GetDefinitionByID(db, *id)
		if err != nil {
			return err
		}
		intervalType = def.IntervalType
		periods, err = def.PeriodList()
		if err != nil {
			return err
		}
	default:
		periods, err = parsePeriods(*periodsArg)
		if err != nil {
			return err
		}
	}

	report, err := app.Reports.CohortAnalysis(ctx, siteID, intervalType, periods, filters, *maxCohorts)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func parsePeriods(arg string) ([]int, error) {
	var periods []int
	for _, part := range strings.Split(arg, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid period %q: %w", part, err)
		}
		periods = append(periods, n)
	}
	return periods, nil
}
