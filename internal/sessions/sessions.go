// Package sessions reconstructs visitor sessions from a window of ordered
// events. Sessions are never persisted: they are recomputed per report
// request and must be bit-reproducible from the same event set.
package sessions

import (
	"sort"
	"time"

	"trailmark/internal/events"
)

// Session is the derived aggregate over all events sharing a session id
// within one site's window.
type Session struct {
	SessionID  string
	VisitorID  string
	EntryEvent events.Event
	ExitEvent  events.Event

	EventCount      int
	PageviewCount   int
	DurationSeconds int64
	Converted       bool
}

// ConversionSet holds the event types that mark a session as converted.
type ConversionSet map[string]struct{}

// NewConversionSet builds a ConversionSet from a list of event types.
func NewConversionSet(types []string) ConversionSet {
	set := make(ConversionSet, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// Contains reports whether eventType is a conversion event.
func (cs ConversionSet) Contains(eventType string) bool {
	_, ok := cs[eventType]
	return ok
}

// Reconstruct groups the window's events by session id in a single pass and
// derives session-level facts. Input events are expected in timestamp order;
// within a session, ties on equal timestamps are broken by the events'
// position in the input (stable), so entry/exit ranking is deterministic.
//
// A session spanning the window boundary is reconstructed from the in-window
// events only; the resulting truncation bias is a documented limitation of
// stateless reconstruction, not something Reconstruct corrects.
func Reconstruct(evs []events.Event, conversions ConversionSet) []Session {
	grouped := make(map[string][]events.Event)
	order := make([]string, 0)
	for _, ev := range evs {
		if _, seen := grouped[ev.SessionID]; !seen {
			order = append(order, ev.SessionID)
		}
		grouped[ev.SessionID] = append(grouped[ev.SessionID], ev)
	}

	result := make([]Session, 0, len(order))
	for _, sessionID := range order {
		group := grouped[sessionID]
		// Stable sort: preserves insertion order under equal timestamps even
		// if the caller handed us an unsorted slice.
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})

		s := Session{
			SessionID:  sessionID,
			VisitorID:  group[0].VisitorID,
			EntryEvent: group[0],
			ExitEvent:  group[len(group)-1],
			EventCount: len(group),
		}
		for _, ev := range group {
			if ev.IsPageView() {
				s.PageviewCount++
			}
			if conversions.Contains(ev.EventType) {
				s.Converted = true
			}
		}
		s.DurationSeconds = durationSeconds(s.EntryEvent.Timestamp, s.ExitEvent.Timestamp)
		result = append(result, s)
	}

	return result
}

// ByID indexes reconstructed sessions by session id.
func ByID(sessions []Session) map[string]Session {
	m := make(map[string]Session, len(sessions))
	for _, s := range sessions {
		m[s.SessionID] = s
	}
	return m
}

func durationSeconds(from, to time.Time) int64 {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
