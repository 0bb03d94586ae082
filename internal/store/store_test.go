package store

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"spendy/internal/model"
)

// testKey is a fixed 256-bit key in hex; tests never touch the real
// OS secret store.
const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func strPtr(s string) *string { return &s }

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spendy.sqlite")
	st, err := Open(path, testKey)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, path
}

func snap(app, bundle string) model.Snapshot {
	return model.Snapshot{AppName: app, BundleID: bundle}
}

func within(t *testing.T, got, want time.Time) {
	t.Helper()
	d := got.Sub(want)
	if d < 0 {
		d = -d
	}
	if d > time.Millisecond {
		t.Errorf("timestamp %v not within 1ms of %v", got, want)
	}
}

// --- Initialization ---

func TestOpen_WhenPathIsFresh_ShouldCreateRestrictedFile(t *testing.T) {
	_, path := openTestStore(t)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat store file: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestOpen_WhenReopenedWithSameKey_ShouldSeeExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spendy.sqlite")
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	st, err := Open(path, testKey)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := st.InsertSession(snap("Terminal", "com.apple.Terminal"), at, at.Add(time.Minute)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	st.Close()

	st, err = Open(path, testKey)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	sessions, err := st.Timeline(at.Add(-time.Hour))
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 persisted session, got %d", len(sessions))
	}
}

func TestOpen_WhenFileIsEncrypted_ShouldNotContainPlaintextHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spendy.sqlite")
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	st, err := Open(path, testKey)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := st.InsertSession(snap("Terminal", "com.apple.Terminal"), at, at); err != nil {
		t.Fatalf("insert: %v", err)
	}
	st.Close()

	head := make([]byte, 16)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open raw file: %v", err)
	}
	defer f.Close()
	if _, err := f.Read(head); err != nil {
		t.Fatalf("read header: %v", err)
	}
	if bytes.HasPrefix(head, []byte("SQLite format 3")) {
		t.Error("store file begins with the plaintext SQLite header")
	}
}

// --- Migration ---

// writePlaintextStore fabricates the file a pre-encryption version of
// the app would have left behind, including a few rows.
func writePlaintextStore(t *testing.T, path string, n int) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open plaintext: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("plaintext schema: %v", err)
	}
	base := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		start := base.Add(time.Duration(i) * time.Minute)
		_, err := db.Exec(`
			INSERT INTO activities (start_time, end_time, app_name, bundle_id, window_title, url, website_host)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			unix(start), unix(start.Add(30*time.Second)),
			"Legacy App", "com.example.legacy", "window "+string(rune('a'+i)), nil, nil,
		)
		if err != nil {
			t.Fatalf("plaintext insert %d: %v", i, err)
		}
	}
}

func TestOpen_WhenFileIsPlaintext_ShouldMigrateAllRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spendy.sqlite")
	writePlaintextStore(t, path, 5)

	st, err := Open(path, testKey)
	if err != nil {
		t.Fatalf("open with migration: %v", err)
	}
	defer st.Close()

	sessions, err := st.Timeline(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(sessions) != 5 {
		t.Fatalf("expected 5 migrated sessions, got %d", len(sessions))
	}
	for _, s := range sessions {
		if s.AppName != "Legacy App" || s.BundleID != "com.example.legacy" {
			t.Errorf("migrated row lost identity fields: %+v", s)
		}
		if s.WindowTitle == nil {
			t.Error("migrated row lost window title")
		}
		if s.URL != nil || s.WebsiteHost != nil {
			t.Error("migrated row grew values that were NULL")
		}
	}
}

func TestOpen_WhenFileIsPlaintext_ShouldLeaveNoPlaintextAtOriginalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spendy.sqlite")
	writePlaintextStore(t, path, 3)

	st, err := Open(path, testKey)
	if err != nil {
		t.Fatalf("open with migration: %v", err)
	}
	st.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migrated file: %v", err)
	}
	if bytes.HasPrefix(raw, []byte("SQLite format 3")) {
		t.Error("original path still holds a plaintext database")
	}
	if bytes.Contains(raw, []byte("Legacy App")) {
		t.Error("plaintext row data still present on disk")
	}
	if _, err := os.Stat(path + ".migrating"); !os.IsNotExist(err) {
		t.Error("migration scratch file left behind")
	}
}

// --- Insert / UpdateEnd ---

func TestInsertSession_ShouldAssignIncreasingIds(t *testing.T) {
	st, _ := openTestStore(t)
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	first, err := st.InsertSession(snap("A", "com.a"), at, at)
	if err != nil {
		t.Fatalf("insert first: %v", err)
	}
	second, err := st.InsertSession(snap("B", "com.b"), at.Add(time.Second), at.Add(time.Second))
	if err != nil {
		t.Fatalf("insert second: %v", err)
	}

	if second <= first {
		t.Errorf("expected increasing ids, got %d then %d", first, second)
	}
}

func TestUpdateEnd_ShouldTouchOnlyTheTargetRow(t *testing.T) {
	st, _ := openTestStore(t)
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	id, err := st.InsertSession(snap("A", "com.a"), at, at)
	if err != nil {
		t.Fatalf("insert a: %v", err)
	}
	other, err := st.InsertSession(snap("B", "com.b"), at.Add(time.Second), at.Add(2*time.Second))
	if err != nil {
		t.Fatalf("insert b: %v", err)
	}

	if err := st.UpdateEnd(id, at.Add(time.Minute)); err != nil {
		t.Fatalf("update end: %v", err)
	}

	sessions, err := st.Timeline(at.Add(-time.Hour))
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	for _, s := range sessions {
		switch s.ID {
		case id:
			within(t, s.End, at.Add(time.Minute))
			within(t, s.Start, at)
			if s.AppName != "A" {
				t.Error("update changed identity fields")
			}
		case other:
			within(t, s.End, at.Add(2*time.Second))
		}
	}
}

// --- Timeline ---

func TestTimeline_ShouldReturnMostRecentFirstAndRespectSince(t *testing.T) {
	st, _ := openTestStore(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		if _, err := st.InsertSession(snap("A", "com.a"), at, at.Add(30*time.Second)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	sessions, err := st.Timeline(base.Add(time.Minute))
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions at or after the boundary, got %d", len(sessions))
	}
	if !sessions[0].Start.After(sessions[1].Start) {
		t.Error("expected descending start order")
	}
	within(t, sessions[0].Start, base.Add(2*time.Minute))
}

func TestTimeline_WhenMoreRowsThanLimit_ShouldBoundTo300(t *testing.T) {
	st, _ := openTestStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < timelineLimit+5; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		if _, err := st.InsertSession(snap("A", "com.a"), at, at); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	sessions, err := st.Timeline(base)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(sessions) != timelineLimit {
		t.Errorf("expected %d rows, got %d", timelineLimit, len(sessions))
	}
}

// --- Totals ---

func TestAppTotals_ShouldSumPerAppAndSortDescending(t *testing.T) {
	st, _ := openTestStore(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	// A: 60s + 30s, B: 120s
	insert := func(app, bundle string, offset, dur time.Duration) {
		t.Helper()
		at := base.Add(offset)
		if _, err := st.InsertSession(snap(app, bundle), at, at.Add(dur)); err != nil {
			t.Fatalf("insert %s: %v", app, err)
		}
	}
	insert("A", "com.a", 0, 60*time.Second)
	insert("B", "com.b", 2*time.Minute, 120*time.Second)
	insert("A", "com.a", 5*time.Minute, 30*time.Second)

	totals, err := st.AppTotals(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("app totals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 totals, got %d", len(totals))
	}
	if totals[0].AppName != "B" || totals[0].Duration != 120*time.Second {
		t.Errorf("expected B=120s first, got %s=%v", totals[0].AppName, totals[0].Duration)
	}
	if totals[1].AppName != "A" || totals[1].Duration != 90*time.Second {
		t.Errorf("expected A=90s second, got %s=%v", totals[1].AppName, totals[1].Duration)
	}
}

func TestAppTotals_ShouldRespectSinceBoundary(t *testing.T) {
	st, _ := openTestStore(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	if _, err := st.InsertSession(snap("Old", "com.old"), base.Add(-2*time.Hour), base.Add(-time.Hour)); err != nil {
		t.Fatalf("insert old: %v", err)
	}
	if _, err := st.InsertSession(snap("New", "com.new"), base, base.Add(time.Minute)); err != nil {
		t.Fatalf("insert new: %v", err)
	}

	totals, err := st.AppTotals(base)
	if err != nil {
		t.Fatalf("app totals: %v", err)
	}
	if len(totals) != 1 || totals[0].AppName != "New" {
		t.Errorf("expected only the in-window app, got %+v", totals)
	}
}

func TestWebsiteTotals_ShouldExcludeRowsWithoutHost(t *testing.T) {
	st, _ := openTestStore(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	browser := model.Snapshot{
		AppName: "Safari", BundleID: "com.apple.Safari",
		URL: strPtr("https://example.com/a"), WebsiteHost: strPtr("example.com"),
	}
	if _, err := st.InsertSession(browser, base, base.Add(45*time.Second)); err != nil {
		t.Fatalf("insert browser: %v", err)
	}
	if _, err := st.InsertSession(snap("Terminal", "com.apple.Terminal"), base.Add(time.Minute), base.Add(2*time.Minute)); err != nil {
		t.Fatalf("insert terminal: %v", err)
	}

	totals, err := st.WebsiteTotals(base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("website totals: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("expected 1 host total, got %d", len(totals))
	}
	if totals[0].Host != "example.com" || totals[0].Duration != 45*time.Second {
		t.Errorf("unexpected total %+v", totals[0])
	}
}
