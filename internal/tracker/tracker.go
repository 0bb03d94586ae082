// Package tracker runs the sampling loop that feeds the ledger: one
// observation per tick, idle gating, and a graceful close on
// shutdown.
package tracker

import (
	"context"
	"log/slog"
	"time"

	"spendy/internal/model"
	"spendy/internal/source"
)

// Ledger is the write surface the loop drives.
type Ledger interface {
	Record(snap model.Snapshot, at time.Time)
	EndCurrent(at time.Time)
}

// AppReader observes the foreground application.
type AppReader interface {
	FrontmostApp(ctx context.Context) (*source.AppInfo, error)
	WindowTitle(ctx context.Context) *string
}

// TabReader observes one browser's active tab.
type TabReader interface {
	BundleID() string
	ActiveTab(ctx context.Context) source.Tab
}

// IdleReader reports seconds since the last user input.
type IdleReader interface {
	IdleSeconds(ctx context.Context) float64
}

// Options wire a Tracker.
type Options struct {
	Ledger        Ledger
	Desktop       AppReader
	Browsers      []TabReader
	Idle          IdleReader
	Interval      time.Duration
	IdleThreshold time.Duration
}

// Tracker samples on a fixed interval. All work for one tick runs to
// completion on the loop goroutine before the next tick is consumed,
// so ticks never overlap; a slow capability delays sampling instead.
type Tracker struct {
	ledger        Ledger
	desktop       AppReader
	browsers      map[string]TabReader
	idle          IdleReader
	interval      time.Duration
	idleThreshold time.Duration

	now func() time.Time // test seam
}

// New returns a Tracker from the given wiring.
func New(opts Options) *Tracker {
	browsers := make(map[string]TabReader, len(opts.Browsers))
	for _, b := range opts.Browsers {
		browsers[b.BundleID()] = b
	}
	return &Tracker{
		ledger:        opts.Ledger,
		desktop:       opts.Desktop,
		browsers:      browsers,
		idle:          opts.Idle,
		interval:      opts.Interval,
		idleThreshold: opts.IdleThreshold,
		now:           time.Now,
	}
}

// Run samples until ctx is done, then closes the open session.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			t.ledger.EndCurrent(t.now())
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick performs one sample: gate on idleness, assemble the snapshot
// from whichever capabilities respond, and hand it to the ledger.
func (t *Tracker) Tick(ctx context.Context) {
	now := t.now()

	if t.idle != nil && t.idle.IdleSeconds(ctx) >= t.idleThreshold.Seconds() {
		t.ledger.EndCurrent(now)
		return
	}

	info, err := t.desktop.FrontmostApp(ctx)
	if err != nil {
		slog.Debug("frontmost app read failed", "err", err)
		return
	}
	if info == nil {
		return
	}

	snap := model.Snapshot{AppName: info.Name, BundleID: info.BundleID}
	if browser, ok := t.browsers[info.BundleID]; ok {
		tab := browser.ActiveTab(ctx)
		snap.URL = tab.URL
		snap.WebsiteHost = tab.Host
		snap.WindowTitle = tab.Title
	} else {
		snap.WindowTitle = t.desktop.WindowTitle(ctx)
	}

	t.ledger.Record(snap, now)
}
