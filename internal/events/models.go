package events

import (
	"encoding/json"
	"time"
)

// Event represents a tracked visitor event. Events are immutable facts
// written once by ingestion and never mutated; every derived structure in the
// engine is a pure function of a window of these rows.
type Event struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	SiteID      uint      `gorm:"index:idx_site_timestamp;not null"`
	VisitorID   string    `gorm:"index;size:64;not null"`
	SessionID   string    `gorm:"index;size:64;not null"`
	EventType   string    `gorm:"index;not null"`
	Timestamp   time.Time `gorm:"index:idx_site_timestamp;not null"`
	PageURL     string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
	UTMTerm     string
	UTMContent  string
	Country     string `gorm:"index"`
	City        string
	DeviceType  string `gorm:"index"`
	Browser     string
	OS          string
	Properties  string `gorm:"type:text"`
	CreatedAt   time.Time
}

// IsPageView reports whether the event is a page view.
func (e *Event) IsPageView() bool {
	return e.EventType == EventTypePageView
}

// PropertyMap decodes the Properties JSON column. Returns an empty map for
// missing or malformed payloads; properties are advisory, never load-bearing.
func (e *Event) PropertyMap() map[string]interface{} {
	if e.Properties == "" {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(e.Properties), &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}
