package timeframe

import (
	"fmt"
	"time"
)

// DefaultWindowDays is the range used when the caller provides no dates.
const DefaultWindowDays = 30

// TimeProvider abstracts the clock so parsing is testable.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// Parser turns "2006-01-02" date strings into a TimeFrame.
type Parser struct {
	timeProvider TimeProvider
}

func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}
	return &Parser{timeProvider: provider}
}

// Parse builds a TimeFrame from optional from/to date strings. A missing
// "from" defaults to DefaultWindowDays before now; a missing "to" defaults to
// now. End dates are extended to the end of their day so a single-day range
// covers the whole day.
func (p *Parser) Parse(fromDate, toDate string) (TimeFrame, error) {
	now := p.timeProvider.Now()

	from := now.Truncate(24 * time.Hour).AddDate(0, 0, -DefaultWindowDays)
	if fromDate != "" {
		d, err := time.Parse("2006-01-02", fromDate)
		if err != nil {
			return TimeFrame{}, fmt.Errorf("invalid 'from' date: %w", err)
		}
		from = d
	}

	to := now
	if toDate != "" {
		d, err := time.Parse("2006-01-02", toDate)
		if err != nil {
			return TimeFrame{}, fmt.Errorf("invalid 'to' date: %w", err)
		}
		to = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999999999, time.UTC)
	}

	return New(from, to)
}
