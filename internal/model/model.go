// Package model defines the domain types shared across the application.
package model

import "time"

// Snapshot is one instantaneous observation of what the user is doing.
// Optional fields are nil when the corresponding capability had nothing
// to report (permission denied, timeout, or simply not a browser).
type Snapshot struct {
	AppName     string
	BundleID    string
	WindowTitle *string
	URL         *string
	WebsiteHost *string
}

// Equal reports full value equality across all fields. The ledger
// extends the open session only while this holds between polls.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.AppName == o.AppName &&
		s.BundleID == o.BundleID &&
		eqOpt(s.WindowTitle, o.WindowTitle) &&
		eqOpt(s.URL, o.URL) &&
		eqOpt(s.WebsiteHost, o.WebsiteHost)
}

func eqOpt(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Session is one persisted activity range during which the observed
// identity stayed constant. Only End ever changes after insertion,
// and only while the session is open.
type Session struct {
	ID          int64
	Start       time.Time
	End         time.Time
	AppName     string
	BundleID    string
	WindowTitle *string
	URL         *string
	WebsiteHost *string
}

// Duration is the session length, clamped so malformed rows never
// report negative time.
func (s Session) Duration() time.Duration {
	d := s.End.Sub(s.Start)
	if d < 0 {
		return 0
	}
	return d
}

// AppTotal is the summed duration for one application.
type AppTotal struct {
	AppName  string
	Duration time.Duration
}

// WebsiteTotal is the summed duration for one website host.
type WebsiteTotal struct {
	Host     string
	Duration time.Duration
}

// Report is an immutable read-side view of the timeline since a
// boundary, recomputed on demand.
type Report struct {
	Since         time.Time
	Timeline      []Session
	AppTotals     []AppTotal
	WebsiteTotals []WebsiteTotal
}
