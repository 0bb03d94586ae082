// Package permission polls OS permission state and reports changes.
// It runs on its own timer, independent of the sampling loop.
package permission

import (
	"context"
	"time"
)

// Status holds the grants the tracker depends on.
type Status struct {
	Accessibility    bool
	SafariAutomation bool
	ChromeAutomation bool
}

// Prober answers one poll round.
type Prober interface {
	Probe(ctx context.Context) Status
}

// ProbeFunc adapts a function to the Prober interface.
type ProbeFunc func(ctx context.Context) Status

func (f ProbeFunc) Probe(ctx context.Context) Status { return f(ctx) }

// Watcher re-checks permission state on an interval and invokes
// onChange only when the status differs from the previous round. The
// first round always notifies, establishing the baseline.
type Watcher struct {
	prober   Prober
	interval time.Duration
	onChange func(Status)

	last   Status
	primed bool
}

// NewWatcher returns a Watcher; onChange runs on the watcher's
// goroutine.
func NewWatcher(p Prober, interval time.Duration, onChange func(Status)) *Watcher {
	return &Watcher{prober: p, interval: interval, onChange: onChange}
}

// Run polls until ctx is done, starting with an immediate round.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll performs one probe round and fires onChange on transitions.
func (w *Watcher) poll(ctx context.Context) {
	st := w.prober.Probe(ctx)
	if w.primed && st == w.last {
		return
	}
	w.last = st
	w.primed = true
	w.onChange(st)
}
