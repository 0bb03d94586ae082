// Package ledger turns a noisy stream of point-in-time observations
// into a contiguous session timeline, one open session at a time.
package ledger

import (
	"log/slog"
	"time"

	"spendy/internal/model"
)

// Recorder is the store surface the ledger writes through.
type Recorder interface {
	InsertSession(snap model.Snapshot, start, end time.Time) (int64, error)
	UpdateEnd(id int64, end time.Time) error
}

type openSession struct {
	id   int64
	snap model.Snapshot
}

// Ledger owns the in-memory "current open session" pointer. It is
// absent at startup, set on open, and cleared on close or write
// failure; after a restart the previous session simply keeps its last
// recorded end.
type Ledger struct {
	store   Recorder
	current *openSession
}

// New returns a Ledger with no open session.
func New(store Recorder) *Ledger {
	return &Ledger{store: store}
}

// Record folds one observation into the timeline. An unchanged
// identity extends the open session; a changed one closes it at the
// same instant the new session starts, so back-to-back observations
// produce neither gaps nor overlaps. Exactly one insert or update
// reaches the store per call, except on a transition (one of each).
func (l *Ledger) Record(snap model.Snapshot, at time.Time) {
	if l.current != nil && l.current.snap.Equal(snap) {
		l.advanceEnd(at)
		return
	}
	if l.current != nil {
		l.advanceEnd(at)
	}

	id, err := l.store.InsertSession(snap, at, at)
	if err != nil {
		// Leave nothing open: the next observation starts fresh
		// instead of updating a row that was never written.
		slog.Warn("activity insert failed", "app", snap.AppName, "err", err)
		l.current = nil
		return
	}
	l.current = &openSession{id: id, snap: snap}
}

// EndCurrent closes the open session at the given instant. No-op when
// nothing is open, so it is safe on idle ticks, repeated shutdown
// signals, and before anything was ever recorded.
func (l *Ledger) EndCurrent(at time.Time) {
	if l.current == nil {
		return
	}
	l.advanceEnd(at)
	l.current = nil
}

func (l *Ledger) advanceEnd(at time.Time) {
	if err := l.store.UpdateEnd(l.current.id, at); err != nil {
		slog.Warn("activity end update failed", "id", l.current.id, "err", err)
	}
}
