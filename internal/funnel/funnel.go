package funnel

import (
	"math"
	"time"

	"trailmark/internal/events"
)

// StepResult carries the per-step counts of a funnel run.
type StepResult struct {
	Name                  string  `json:"name"`
	TotalVisitors         int     `json:"total_visitors"`
	ConvertedFromPrevious int     `json:"converted_from_previous"`
	DropoffFromPrevious   int     `json:"dropoff_from_previous"`
	ConversionRate        float64 `json:"conversion_rate"`
	DropoffRate           float64 `json:"dropoff_rate"`
	AvgTimeToConvert      int64   `json:"avg_time_to_convert_seconds"`
}

type Overall struct {
	TotalEntries          int     `json:"total_entries"`
	TotalCompletions      int     `json:"total_completions"`
	OverallConversionRate float64 `json:"overall_conversion_rate"`
	AvgTotalTimeToConvert int64   `json:"avg_total_time_to_convert_seconds"`
}

type Result struct {
	Name    string       `json:"name"`
	Steps   []StepResult `json:"steps"`
	Overall Overall      `json:"overall"`
}

// Analyze runs the funnel over an event window. Each visitor walks the
// steps as a forward-only state machine: an event can only satisfy the
// step the visitor is currently waiting on, and earlier steps are never
// re-matched. Events must be ordered ascending by timestamp.
func Analyze(name string, steps []Step, evs []events.Event, rc *RegexCache) (*Result, error) {
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	if rc == nil {
		rc = NewRegexCache()
	}

	type visitorState struct {
		next      int
		stepTimes []time.Time
	}
	states := make(map[string]*visitorState)

	for _, ev := range evs {
		state, ok := states[ev.VisitorID]
		if !ok {
			state = &visitorState{stepTimes: make([]time.Time, len(steps))}
			states[ev.VisitorID] = state
		}
		if state.next >= len(steps) {
			continue
		}
		matched, err := stepMatches(steps[state.next], ev, rc)
		if err != nil {
			return nil, err
		}
		if matched {
			state.stepTimes[state.next] = ev.Timestamp
			state.next++
		}
	}

	counts := make([]int, len(steps))
	stepDurations := make([]float64, len(steps))
	var totalDuration float64

	for _, state := range states {
		for i := 0; i < state.next; i++ {
			counts[i]++
			if i > 0 {
				stepDurations[i] += state.stepTimes[i].Sub(state.stepTimes[i-1]).Seconds()
			}
		}
		if state.next == len(steps) {
			totalDuration += state.stepTimes[len(steps)-1].Sub(state.stepTimes[0]).Seconds()
		}
	}

	result := &Result{Name: name, Steps: make([]StepResult, len(steps))}
	for i, step := range steps {
		sr := StepResult{
			Name:          step.Name,
			TotalVisitors: counts[i],
		}
		if i == 0 {
			sr.ConvertedFromPrevious = counts[0]
			if counts[0] > 0 {
				sr.ConversionRate = 100
			}
		} else {
			sr.ConvertedFromPrevious = counts[i]
			sr.DropoffFromPrevious = counts[i-1] - counts[i]
			sr.ConversionRate = rate(counts[i], counts[i-1])
			sr.DropoffRate = rate(sr.DropoffFromPrevious, counts[i-1])
			if counts[i] > 0 {
				sr.AvgTimeToConvert = int64(math.Round(stepDurations[i] / float64(counts[i])))
			}
		}
		result.Steps[i] = sr
	}

	last := len(steps) - 1
	result.Overall = Overall{
		TotalEntries:          counts[0],
		TotalCompletions:      counts[last],
		OverallConversionRate: rate(counts[last], counts[0]),
	}
	if counts[last] > 0 {
		result.Overall.AvgTotalTimeToConvert = int64(math.Round(totalDuration / float64(counts[last])))
	}
	return result, nil
}

func stepMatches(step Step, ev events.Event, rc *RegexCache) (bool, error) {
	switch step.Kind {
	case StepKindEvent:
		return step.MatchValue(ev.EventType, rc)
	case StepKindURL:
		if ev.PageURL == "" {
			return false, nil
		}
		return step.MatchValue(ev.PageURL, rc)
	}
	return false, nil
}

// rate is numerator/denominator as a percentage, rounded to two
// decimals, 0 when the denominator is 0.
func rate(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return math.Round(float64(numerator)/float64(denominator)*100*100) / 100
}
