// Package store manages all encrypted SQLite persistence operations.
//
// The backing file is encrypted at rest with a key held in the OS
// secret store. Opening probes readability with that key; a probe
// failure means the file predates encryption, which triggers a
// one-time export-and-swap migration. The store refuses to operate
// unencrypted: any migration failure aborts initialization.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"spendy/internal/model"

	_ "github.com/mutecomm/go-sqlcipher/v4"
)

const (
	timelineLimit = 300
	totalsLimit   = 100
)

// Store wraps an encrypted SQLite connection and exposes
// domain-specific persistence. One Store owns the file exclusively
// for the process lifetime.
type Store struct {
	db *sql.DB
}

// Open initializes the store at path using the hex-encoded 256-bit
// key: owner-only directory and file, key application, readability
// probe, plaintext migration if needed, then schema.
func Open(path, hexKey string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create store file: %w", err)
	}
	f.Close()
	if err := os.Chmod(path, 0o600); err != nil {
		return nil, fmt.Errorf("restrict store file: %w", err)
	}

	db, err := openEncrypted(path, hexKey)
	if err != nil {
		return nil, err
	}

	if err := probe(db); err != nil {
		// The file is unreadable under the key: a plaintext store
		// left behind by a pre-encryption version. Re-encrypt it.
		db.Close()
		if merr := migrate(path, hexKey); merr != nil {
			return nil, fmt.Errorf("migrate plaintext store: %w", merr)
		}
		db, err = openEncrypted(path, hexKey)
		if err != nil {
			return nil, err
		}
		if err := probe(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("store unreadable after migration: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func openEncrypted(path, hexKey string) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'", path, hexKey)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return db, nil
}

// probe attempts a trivial metadata read, which fails unless the
// connection's key matches the file.
func probe(db *sql.DB) error {
	var n int
	return db.QueryRow(`SELECT count(*) FROM sqlite_master`).Scan(&n)
}

// migrate re-encrypts a plaintext database in place: export every
// object into an encrypted sibling file, then atomically swap it over
// the original. Any failed sub-step leaves the original untouched.
func migrate(path, hexKey string) error {
	ctx := context.Background()

	plain, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("open plaintext: %w", err)
	}
	defer plain.Close()
	if err := probe(plain); err != nil {
		return fmt.Errorf("source unreadable: %w", err)
	}

	tmp := path + ".migrating"
	os.Remove(tmp) // leftover from an aborted earlier attempt

	// ATTACH is per-connection state, so the whole export must run on
	// one pinned connection.
	conn, err := plain.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	attach := fmt.Sprintf(`ATTACH DATABASE ? AS encrypted KEY "x'%s'"`, hexKey)
	if _, err := conn.ExecContext(ctx, attach, tmp); err != nil {
		return fmt.Errorf("attach encrypted copy: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT sqlcipher_export('encrypted')`); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `DETACH DATABASE encrypted`); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("release connection: %w", err)
	}
	if err := plain.Close(); err != nil {
		return fmt.Errorf("close plaintext: %w", err)
	}
	if err := os.Chmod(tmp, 0o600); err != nil {
		return fmt.Errorf("restrict migrated file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

// --- Session operations ---

// InsertSession appends one activity row and returns its assigned id.
// Ids increase with insertion order within a process lifetime.
func (s *Store) InsertSession(snap model.Snapshot, start, end time.Time) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO activities (start_time, end_time, app_name, bundle_id, window_title, url, website_host)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		unix(start), unix(end), snap.AppName, snap.BundleID,
		nullStr(snap.WindowTitle), nullStr(snap.URL), nullStr(snap.WebsiteHost),
	)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("activity id: %w", err)
	}
	return id, nil
}

// UpdateEnd advances exactly one session's end timestamp.
func (s *Store) UpdateEnd(id int64, end time.Time) error {
	if _, err := s.db.Exec(`UPDATE activities SET end_time = ? WHERE id = ?`, unix(end), id); err != nil {
		return fmt.Errorf("update end of activity %d: %w", id, err)
	}
	return nil
}

// --- Queries ---

// Timeline returns sessions whose start is at or after since, most
// recent first, bounded to 300 rows.
func (s *Store) Timeline(since time.Time) ([]model.Session, error) {
	rows, err := s.db.Query(`
		SELECT id, start_time, end_time, app_name, bundle_id, window_title, url, website_host
		FROM activities
		WHERE start_time >= ?
		ORDER BY start_time DESC
		LIMIT ?`, unix(since), timelineLimit)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var (
			sess       model.Session
			start, end float64
			title      sql.NullString
			rawURL     sql.NullString
			host       sql.NullString
		)
		if err := rows.Scan(&sess.ID, &start, &end, &sess.AppName, &sess.BundleID, &title, &rawURL, &host); err != nil {
			return nil, fmt.Errorf("scan timeline row: %w", err)
		}
		sess.Start = fromUnix(start)
		sess.End = fromUnix(end)
		sess.WindowTitle = optStr(title)
		sess.URL = optStr(rawURL)
		sess.WebsiteHost = optStr(host)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AppTotals returns per-application summed durations since the
// boundary, descending by total, bounded to 100 rows.
func (s *Store) AppTotals(since time.Time) ([]model.AppTotal, error) {
	rows, err := s.db.Query(`
		SELECT app_name, SUM(end_time - start_time) AS total
		FROM activities
		WHERE start_time >= ?
		GROUP BY app_name
		ORDER BY total DESC
		LIMIT ?`, unix(since), totalsLimit)
	if err != nil {
		return nil, fmt.Errorf("query app totals: %w", err)
	}
	defer rows.Close()

	var out []model.AppTotal
	for rows.Next() {
		var (
			name  string
			total float64
		)
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scan app total: %w", err)
		}
		out = append(out, model.AppTotal{AppName: name, Duration: seconds(total)})
	}
	return out, rows.Err()
}

// WebsiteTotals returns per-host summed durations since the boundary,
// excluding rows without a host, descending by total, bounded to 100.
func (s *Store) WebsiteTotals(since time.Time) ([]model.WebsiteTotal, error) {
	rows, err := s.db.Query(`
		SELECT website_host, SUM(end_time - start_time) AS total
		FROM activities
		WHERE start_time >= ? AND website_host IS NOT NULL
		GROUP BY website_host
		ORDER BY total DESC
		LIMIT ?`, unix(since), totalsLimit)
	if err != nil {
		return nil, fmt.Errorf("query website totals: %w", err)
	}
	defer rows.Close()

	var out []model.WebsiteTotal
	for rows.Next() {
		var (
			host  string
			total float64
		)
		if err := rows.Scan(&host, &total); err != nil {
			return nil, fmt.Errorf("scan website total: %w", err)
		}
		out = append(out, model.WebsiteTotal{Host: host, Duration: seconds(total)})
	}
	return out, rows.Err()
}

// --- helpers ---

// Timestamps are stored as REAL unix seconds, matching the schema's
// lineage. Sub-second activity resolution is out of scope, so float64
// precision at current epochs (sub-microsecond) is ample.

func unix(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromUnix(f float64) time.Time {
	return time.UnixMicro(int64(f * 1e6))
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func nullStr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func optStr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
