// Package store is the embedded single-file inventory database: schema,
// migrations, and the upsert/seen/cache-stream/scan-run primitives the
// Ingest API is built on.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sift-inventory/sift/internal/protocol"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	host           TEXT    NOT NULL,
	drive          TEXT    NOT NULL DEFAULT '',
	path           TEXT    NOT NULL,
	path_display   TEXT    NOT NULL,
	filename       TEXT    NOT NULL,
	ext            TEXT    NOT NULL DEFAULT '',
	file_category  TEXT    NOT NULL DEFAULT 'other',
	size_bytes     INTEGER,
	hash           TEXT,
	mtime          INTEGER,
	last_checked   DATETIME NOT NULL,
	source_os      TEXT    NOT NULL,
	skipped_reason TEXT,
	last_seen_at   DATETIME NOT NULL,
	inode          INTEGER,
	device         INTEGER,
	PRIMARY KEY (host, drive, path)
);

CREATE TABLE IF NOT EXISTS scan_runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	host       TEXT NOT NULL,
	root_path  TEXT NOT NULL,
	root_path_display TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running'
);

CREATE TABLE IF NOT EXISTS host_stats (
	host         TEXT PRIMARY KEY,
	total_files  INTEGER NOT NULL DEFAULT 0,
	total_bytes  INTEGER NOT NULL DEFAULT 0,
	total_hashed INTEGER NOT NULL DEFAULT 0,
	refreshed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_hash      ON files(hash);
CREATE INDEX IF NOT EXISTS idx_files_size      ON files(size_bytes);
CREATE INDEX IF NOT EXISTS idx_files_host      ON files(host);
CREATE INDEX IF NOT EXISTS idx_files_filename  ON files(filename);
CREATE INDEX IF NOT EXISTS idx_files_ext       ON files(ext);
CREATE INDEX IF NOT EXISTS idx_files_category  ON files(file_category);
CREATE INDEX IF NOT EXISTS idx_files_seen      ON files(host, last_seen_at);
CREATE INDEX IF NOT EXISTS idx_files_host_path ON files(host, path);
CREATE INDEX IF NOT EXISTS idx_files_host_hash ON files(host, hash);
CREATE INDEX IF NOT EXISTS idx_scan_runs_host_root ON scan_runs(host, root_path, status);
`

// Store wraps the embedded database connection. SQLite permits only one
// writer at a time, so writeMu serializes writers under a single
// process-wide lock. Reads do not take writeMu, but Open caps
// database/sql's pool at one connection, so statements still run one at
// a time.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open creates (if absent) and migrates the database file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=off")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite writer: avoid SQLITE_BUSY under the pool

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %s: %w", stmt, err)
		}
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for read-only query packages
// (internal/query, internal/trim) that need SELECT access without taking
// the write lock.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpsertFiles inserts or replaces a batch of file records in a single
// multi-row statement. One statement per row would dominate runtime on a
// large batch; one statement with N value tuples amortizes index
// maintenance across the whole batch.
func (s *Store) UpsertFiles(ctx context.Context, records []protocol.FileRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	const cols = 16
	placeholders := make([]string, len(records))
	args := make([]any, 0, len(records)*cols)

	for i, r := range records {
		placeholders[i] = "(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)"
		args = append(args,
			r.Host, r.Drive, r.Path, r.PathDisplay, r.Filename, r.Ext, string(r.FileCategory),
			r.SizeBytes, r.Hash, r.Mtime, r.LastChecked, r.SourceOS, nullString(string(r.SkippedReason)),
			r.LastSeenAt, r.Inode, r.Device,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO files (host, drive, path, path_display, filename, ext, file_category,
			size_bytes, hash, mtime, last_checked, source_os, skipped_reason, last_seen_at, inode, device)
		VALUES %s
		ON CONFLICT(host, drive, path) DO UPDATE SET
			path_display=excluded.path_display, filename=excluded.filename, ext=excluded.ext,
			file_category=excluded.file_category, size_bytes=excluded.size_bytes, hash=excluded.hash,
			mtime=excluded.mtime, last_checked=excluded.last_checked, source_os=excluded.source_os,
			skipped_reason=excluded.skipped_reason, last_seen_at=excluded.last_seen_at,
			inode=excluded.inode, device=excluded.device
	`, strings.Join(placeholders, ","))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("upsert files: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// MarkSeen bulk-updates last_seen_at for every (drive, path) pair belonging
// to host.
func (s *Store) MarkSeen(ctx context.Context, host string, lastSeenAt time.Time, paths []protocol.SeenPath) (int, error) {
	if len(paths) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	placeholders := make([]string, len(paths))
	args := make([]any, 0, len(paths)*2+2)
	args = append(args, lastSeenAt, host)
	for i, p := range paths {
		placeholders[i] = "(?,?)"
		args = append(args, p.Drive, p.Path)
	}

	query := fmt.Sprintf(`
		UPDATE files SET last_seen_at = ?
		WHERE host = ? AND (drive, path) IN (VALUES %s)
	`, strings.Join(placeholders, ","))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CacheRow is one (path, mtime, size) triple used by the orchestrator to
// avoid rehashing unchanged files.
type CacheRow struct {
	Path  string
	Mtime int64
	Size  int64
}

// StreamCache yields every cached (path, mtime, size) row for (host, root)
// to fn, one at a time, rather than materializing the whole result set:
// hosts can have millions of rows.
func (s *Store) StreamCache(ctx context.Context, host, root string, fn func(CacheRow) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, COALESCE(mtime, 0), COALESCE(size_bytes, 0)
		FROM files WHERE host = ? AND (path = ? OR path LIKE ? || '/%')
	`, host, root, root)
	if err != nil {
		return fmt.Errorf("stream cache: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r CacheRow
		if err := rows.Scan(&r.Path, &r.Mtime, &r.Size); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CreateScanRun atomically demotes any prior running run for (host,
// root_path) to failed, then inserts the new running row, returning its id.
func (s *Store) CreateScanRun(ctx context.Context, run protocol.ScanRunCreate) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE scan_runs SET status = 'failed'
		WHERE host = ? AND root_path = ? AND status = 'running'
	`, run.Host, run.RootPath); err != nil {
		return 0, fmt.Errorf("demote prior run: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scan_runs (host, root_path, root_path_display, started_at, status)
		VALUES (?, ?, ?, ?, 'running')
	`, run.Host, run.RootPath, run.RootPathDisplay, run.StartedAt)
	if err != nil {
		return 0, fmt.Errorf("insert scan run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// PatchScanRun updates a scan run's status.
func (s *Store) PatchScanRun(ctx context.Context, id int64, status protocol.ScanRunStatus) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE scan_runs SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("patch scan run: %w", err)
	}
	return nil
}

// ScanRun mirrors one row of the scan_runs table.
type ScanRun struct {
	ID              int64
	Host            string
	RootPath        string
	RootPathDisplay string
	StartedAt       time.Time
	Status          string
}

// HostStats mirrors one row of the host_stats materialized rollup.
type HostStats struct {
	Host        string
	TotalFiles  int64
	TotalBytes  int64
	TotalHashed int64
	RefreshedAt time.Time
}

// RefreshHostStats recomputes host's totals with a single aggregation
// query and upserts them into host_stats. Called by internal/statsrefresh
// on its throttle, and once synchronously when a scan run completes.
func (s *Store) RefreshHostStats(ctx context.Context, host string, now time.Time) (HostStats, error) {
	hs := HostStats{Host: host, RefreshedAt: now}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COUNT(hash)
		FROM files WHERE host = ?
	`, host)
	if err := row.Scan(&hs.TotalFiles, &hs.TotalBytes, &hs.TotalHashed); err != nil {
		return HostStats{}, fmt.Errorf("aggregate host stats: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO host_stats (host, total_files, total_bytes, total_hashed, refreshed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			total_files=excluded.total_files, total_bytes=excluded.total_bytes,
			total_hashed=excluded.total_hashed, refreshed_at=excluded.refreshed_at
	`, hs.Host, hs.TotalFiles, hs.TotalBytes, hs.TotalHashed, hs.RefreshedAt)
	if err != nil {
		return HostStats{}, fmt.Errorf("upsert host stats: %w", err)
	}
	return hs, nil
}

// GetHostStats returns the materialized rollup for host, or ok=false if it
// has never been refreshed (e.g. a scan is still in its first pass).
func (s *Store) GetHostStats(ctx context.Context, host string) (hs HostStats, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT host, total_files, total_bytes, total_hashed, refreshed_at
		FROM host_stats WHERE host = ?
	`, host)
	if err := row.Scan(&hs.Host, &hs.TotalFiles, &hs.TotalBytes, &hs.TotalHashed, &hs.RefreshedAt); err != nil {
		if err == sql.ErrNoRows {
			return HostStats{}, false, nil
		}
		return HostStats{}, false, err
	}
	return hs, true, nil
}

// DeleteByRowIDs deletes the given files rows in a single statement,
// returning the number actually removed. Used by internal/trim, the only
// component permitted to destroy file records.
func (s *Store) DeleteByRowIDs(ctx context.Context, rowids []int64) (int, error) {
	if len(rowids) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	placeholders := make([]string, len(rowids))
	args := make([]any, len(rowids))
	for i, id := range rowids {
		placeholders[i] = "?"
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM files WHERE rowid IN (%s)`, strings.Join(placeholders, ","),
	), args...)
	if err != nil {
		return 0, fmt.Errorf("delete by rowid: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// CoveringCompleteRun returns the most recent complete scan run whose
// root_path is an ancestor of (or equal to) path for host, or ok=false if
// none exists.
func (s *Store) CoveringCompleteRun(ctx context.Context, host, path string) (run ScanRun, ok bool, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, host, root_path, root_path_display, started_at, status
		FROM scan_runs
		WHERE host = ? AND status = 'complete' AND (? = root_path OR ? LIKE root_path || '/%')
		ORDER BY started_at DESC
		LIMIT 1
	`, host, path, path)
	if err != nil {
		return run, false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return run, false, rows.Err()
	}
	if err := rows.Scan(&run.ID, &run.Host, &run.RootPath, &run.RootPathDisplay, &run.StartedAt, &run.Status); err != nil {
		return run, false, err
	}
	return run, true, nil
}

// ListScanRuns returns every scan run for host, most recent first.
func (s *Store) ListScanRuns(ctx context.Context, host string) ([]ScanRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, host, root_path, root_path_display, started_at, status
		FROM scan_runs WHERE host = ? ORDER BY started_at DESC
	`, host)
	if err != nil {
		return nil, fmt.Errorf("list scan runs: %w", err)
	}
	defer rows.Close()

	var out []ScanRun
	for rows.Next() {
		var run ScanRun
		if err := rows.Scan(&run.ID, &run.Host, &run.RootPath, &run.RootPathDisplay, &run.StartedAt, &run.Status); err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
