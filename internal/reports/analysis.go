package reports

import (
	"context"

	"trailmark/internal/cohort"
	"trailmark/internal/funnel"
)

type FunnelReport struct {
	Result      *funnel.Result `json:"result"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}

// FunnelAnalysis runs a funnel over the filtered window. Invalid step
// lists are rejected as input errors before any data is read.
func (s *Service) FunnelAnalysis(ctx context.Context, siteID uint, name string, steps []funnel.Step, f Filters) (*FunnelReport, error) {
	if err := funnel.ValidateSteps(steps); err != nil {
		return nil, NewInputError("invalid funnel: %v", err)
	}

	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}

	result, err := funnel.Analyze(name, steps, w.events, s.regexCache)
	if err != nil {
		return nil, err
	}

	w.diag.RowsReturned = len(result.Steps)
	return &FunnelReport{Result: result, Diagnostics: w.diag}, nil
}

type CohortReport struct {
	Analysis    *cohort.Analysis `json:"analysis"`
	Diagnostics Diagnostics      `json:"diagnostics"`
}

// CohortAnalysis runs retention analysis over the filtered window.
// maxCohorts caps the groups returned; the analysis still reports the
// uncapped cohort count.
func (s *Service) CohortAnalysis(ctx context.Context, siteID uint, interval cohort.IntervalType, periods []int, f Filters, maxCohorts int) (*CohortReport, error) {
	if err := cohort.ValidateIntervalType(interval); err != nil {
		return nil, NewInputError("invalid cohort: %v", err)
	}
	if err := cohort.ValidatePeriods(periods); err != nil {
		return nil, NewInputError("invalid cohort: %v", err)
	}

	w, err := s.fetchWindow(ctx, siteID, f)
	if err != nil {
		return nil, err
	}

	analysis, err := cohort.Analyze(interval, periods, w.events, maxCohorts)
	if err != nil {
		return nil, err
	}

	w.diag.RowsReturned = len(analysis.Groups)
	w.diag.RowsCapped = len(analysis.Groups) < analysis.TotalCohorts
	return &CohortReport{Analysis: analysis, Diagnostics: w.diag}, nil
}
