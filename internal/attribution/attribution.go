// Package attribution maps raw events to canonical traffic sources.
//
// Resolution is total: every event yields exactly one (source, medium,
// campaign) triple. UTM parameters win, then known paid click-id markers in
// the page URL, then the event is attributed to direct traffic.
package attribution

import (
	"net/url"
	"strings"

	"trailmark/internal/events"
)

// Defaults used when a component of the triple cannot be resolved.
const (
	DirectSource   = "direct"
	NoMedium       = "none"
	CampaignNotSet = "(not set)"
)

// Attribution is the canonical traffic-source triple derived per event.
// It is computed, never stored.
type Attribution struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
}

// clickIDRule maps a URL query parameter to a source/medium pair.
type clickIDRule struct {
	param  string
	source string
	medium string
}

// Click-id markers checked in fixed priority order when no UTM source is
// present. Order matters: the first matching marker wins.
var clickIDRules = []clickIDRule{
	{"gclid", "google", "cpc"},
	{"gad_source", "google", "cpc"},
	{"fbclid", "facebook", "cpc"},
	{"msclkid", "bing", "cpc"},
	{"li_fat_id", "linkedin", "cpc"},
	{"twclid", "twitter", "cpc"},
	{"ttclid", "tiktok", "cpc"},
}

// Resolve returns the attribution triple for an event. It never fails:
// unresolvable input yields the direct/none/(not set) triple.
func Resolve(ev events.Event) Attribution {
	if ev.UTMSource != "" {
		medium := ev.UTMMedium
		if medium == "" {
			medium = NoMedium
		}
		campaign := ev.UTMCampaign
		if campaign == "" {
			campaign = CampaignNotSet
		}
		return Attribution{Source: ev.UTMSource, Medium: medium, Campaign: campaign}
	}

	if source, medium, ok := resolveClickID(ev.PageURL); ok {
		campaign := ev.UTMCampaign
		if campaign == "" {
			campaign = CampaignNotSet
		}
		return Attribution{Source: source, Medium: medium, Campaign: campaign}
	}

	campaign := ev.UTMCampaign
	if campaign == "" {
		campaign = CampaignNotSet
	}
	return Attribution{Source: DirectSource, Medium: NoMedium, Campaign: campaign}
}

// resolveClickID inspects the page URL query string for known paid click-id
// markers. Returns ok=false when the URL is unparsable or carries none.
func resolveClickID(pageURL string) (source, medium string, ok bool) {
	if pageURL == "" || !strings.Contains(pageURL, "?") {
		return "", "", false
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", false
	}

	query := parsed.Query()
	for _, rule := range clickIDRules {
		if query.Get(rule.param) != "" {
			return rule.source, rule.medium, true
		}
	}

	return "", "", false
}

// Key returns a stable composite key for grouping rows by attribution.
func (a Attribution) Key() string {
	return a.Source + "\x00" + a.Medium + "\x00" + a.Campaign
}
