package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrRowBudgetExceeded is returned when a window holds more rows than the
// configured budget. Callers surface it as a retryable condition (narrow the
// window) rather than computing on a silently truncated batch.
var ErrRowBudgetExceeded = errors.New("event row budget exceeded")

// Query describes a bounded event window read. Zero time bounds mean
// unbounded on that side; filter fields are exact matches and combine as a
// conjunction.
type Query struct {
	SiteID     uint
	From       time.Time
	To         time.Time
	EventType  string
	Country    string
	DeviceType string

	// MaxRows bounds the read. Fetching a window larger than MaxRows fails
	// with ErrRowBudgetExceeded instead of degrading silently.
	MaxRows int
}

// FetchEvents returns the site's events in the window ordered ascending by
// timestamp, with insertion order (id) breaking timestamp ties so repeated
// reads of an unchanged window are byte-identical. The context deadline
// applies to the read only.
func FetchEvents(ctx context.Context, db *gorm.DB, q Query) ([]Event, error) {
	if q.SiteID == 0 {
		return nil, fmt.Errorf("site id is required")
	}

	query := db.WithContext(ctx).Model(&Event{}).Where("site_id = ?", q.SiteID)

	if !q.From.IsZero() {
		query = query.Where("timestamp >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		query = query.Where("timestamp <= ?", q.To.UTC())
	}
	if q.EventType != "" {
		query = query.Where("event_type = ?", q.EventType)
	}
	if q.Country != "" {
		query = query.Where("country = ?", q.Country)
	}
	if q.DeviceType != "" {
		query = query.Where("device_type = ?", q.DeviceType)
	}

	query = query.Order("timestamp ASC, id ASC")
	if q.MaxRows > 0 {
		// Fetch one extra row to detect budget overflow.
		query = query.Limit(q.MaxRows + 1)
	}

	var evs []Event
	if err := query.Find(&evs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	if q.MaxRows > 0 && len(evs) > q.MaxRows {
		return nil, fmt.Errorf("window holds more than %d events: %w", q.MaxRows, ErrRowBudgetExceeded)
	}

	return evs, nil
}

// CountEvents returns the number of events a query would consider, without
// fetching them. Used for report diagnostics.
func CountEvents(ctx context.Context, db *gorm.DB, q Query) (int64, error) {
	var count int64
	query := db.WithContext(ctx).Model(&Event{}).Where("site_id = ?", q.SiteID)
	if !q.From.IsZero() {
		query = query.Where("timestamp >= ?", q.From.UTC())
	}
	if !q.To.IsZero() {
		query = query.Where("timestamp <= ?", q.To.UTC())
	}
	err := query.Count(&count).Error
	return count, err
}

// FirstEventTime returns the timestamp of the site's earliest event, or the
// zero time when the site has no events yet.
func FirstEventTime(db *gorm.DB, siteID uint) (time.Time, error) {
	var ev Event
	err := db.Where("site_id = ?", siteID).Order("timestamp ASC").Limit(1).First(&ev).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to query first event: %w", err)
	}
	return ev.Timestamp, nil
}
