package events

// Well-known event types. The set is open: any string is a valid event type,
// these are the ones the engine attaches semantics to.
const (
	EventTypePageView   = "pageview"
	EventTypeFormStart  = "form_start"
	EventTypeFormSubmit = "form_submit"
	EventTypePurchase   = "purchase"
	EventTypeSignUp     = "sign_up"
	EventTypeLeadForm   = "lead_form"
	EventTypeIdentify   = "identify"
)

// Fallback values for dimension fields missing at ingestion time.
const (
	UnknownCountry = "unknown"
	UnknownDevice  = "unknown"
	UnknownBrowser = "unknown"
	UnknownOS      = "unknown"
)
