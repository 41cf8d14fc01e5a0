package cohort

import (
	"math"
	"sort"
	"time"

	"trailmark/internal/events"
	"trailmark/internal/timeframe"
)

type RetentionPoint struct {
	Period           int     `json:"period"`
	VisitorsReturned int     `json:"visitors_returned"`
	RetentionRate    float64 `json:"retention_rate"`
}

type Group struct {
	CohortPeriod  string           `json:"cohort_period"`
	CohortStart   time.Time        `json:"cohort_start"`
	CohortSize    int              `json:"cohort_size"`
	RetentionData []RetentionPoint `json:"retention_data"`
}

type Analysis struct {
	Groups       []Group `json:"groups"`
	TotalCohorts int     `json:"total_cohorts"`
}

// Analyze buckets visitors into cohorts by the day they were first seen
// in the window, truncated to the interval boundary, and measures for
// each retention offset how many cohort members were active on exactly
// cohort start + offset days. A visitor active later but not on that
// day does not count for the offset (exact-day policy).
//
// Groups come back most recent first. maxCohorts caps how many groups
// are returned (0 means all); TotalCohorts always reflects the
// uncapped count. Events must be ordered ascending by timestamp.
func Analyze(interval IntervalType, periods []int, evs []events.Event, maxCohorts int) (*Analysis, error) {
	if err := ValidateIntervalType(interval); err != nil {
		return nil, err
	}
	if err := ValidatePeriods(periods); err != nil {
		return nil, err
	}

	firstSeen := make(map[string]time.Time)
	activityDays := make(map[string]map[time.Time]struct{})
	for _, ev := range evs {
		if _, ok := firstSeen[ev.VisitorID]; !ok {
			firstSeen[ev.VisitorID] = ev.Timestamp
			activityDays[ev.VisitorID] = make(map[time.Time]struct{})
		}
		day := timeframe.TruncateToBucket(ev.Timestamp, timeframe.BucketSizeDay)
		activityDays[ev.VisitorID][day] = struct{}{}
	}

	bucket := interval.BucketSize()
	cohorts := make(map[time.Time][]string)
	for visitor, seen := range firstSeen {
		start := timeframe.TruncateToBucket(seen, bucket)
		cohorts[start] = append(cohorts[start], visitor)
	}

	starts := make([]time.Time, 0, len(cohorts))
	for start := range cohorts {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].After(starts[j]) })

	total := len(starts)
	if maxCohorts > 0 && len(starts) > maxCohorts {
		starts = starts[:maxCohorts]
	}

	groups := make([]Group, 0, len(starts))
	for _, start := range starts {
		members := cohorts[start]
		group := Group{
			CohortPeriod:  timeframe.BucketLabel(start, bucket),
			CohortStart:   start,
			CohortSize:    len(members),
			RetentionData: make([]RetentionPoint, 0, len(periods)),
		}
		for _, offset := range periods {
			targetDay := start.AddDate(0, 0, offset)
			returned := 0
			for _, visitor := range members {
				if _, ok := activityDays[visitor][targetDay]; ok {
					returned++
				}
			}
			group.RetentionData = append(group.RetentionData, RetentionPoint{
				Period:           offset,
				VisitorsReturned: returned,
				RetentionRate:    retentionRate(returned, len(members)),
			})
		}
		groups = append(groups, group)
	}

	return &Analysis{Groups: groups, TotalCohorts: total}, nil
}

// retentionRate is returned/size as a percentage with one decimal,
// 0 when the cohort is empty.
func retentionRate(returned, size int) float64 {
	if size == 0 {
		return 0
	}
	return math.Round(float64(returned)/float64(size)*100*10) / 10
}
