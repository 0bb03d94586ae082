// Package aggregate derives read-side views from the persisted
// timeline: per-app and per-host totals plus the bounded recent
// timeline, recomputed on demand.
package aggregate

import (
	"log/slog"
	"time"

	"spendy/internal/model"
)

// Querier is the store surface the aggregator reads through.
type Querier interface {
	Timeline(since time.Time) ([]model.Session, error)
	AppTotals(since time.Time) ([]model.AppTotal, error)
	WebsiteTotals(since time.Time) ([]model.WebsiteTotal, error)
}

// Aggregator holds no state beyond its store handle; every call hits
// the store fresh.
type Aggregator struct {
	store Querier
}

// New returns an Aggregator over the given store.
func New(store Querier) *Aggregator {
	return &Aggregator{store: store}
}

// Today computes the report for the current local day of now.
func (a *Aggregator) Today(now time.Time) model.Report {
	return a.Report(StartOfDay(now))
}

// Report recomputes the timeline and both total rankings since the
// boundary. Query failures degrade that view to empty, logged here;
// they never propagate to the presentation side.
func (a *Aggregator) Report(since time.Time) model.Report {
	r := model.Report{Since: since}
	var err error

	if r.Timeline, err = a.store.Timeline(since); err != nil {
		slog.Warn("timeline query failed", "err", err)
		r.Timeline = nil
	}
	if r.AppTotals, err = a.store.AppTotals(since); err != nil {
		slog.Warn("app totals query failed", "err", err)
		r.AppTotals = nil
	}
	if r.WebsiteTotals, err = a.store.WebsiteTotals(since); err != nil {
		slog.Warn("website totals query failed", "err", err)
		r.WebsiteTotals = nil
	}
	return r
}

// StartOfDay returns midnight of t in t's location, the usual "since"
// boundary.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
