package trim

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sift-inventory/sift/internal/protocol"
	"github.com/sift-inventory/sift/internal/query"
	"github.com/sift-inventory/sift/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedFile(t *testing.T, s *store.Store, host, path string, lastSeen time.Time) {
	t.Helper()
	size := int64(5)
	rec := protocol.FileRecord{
		Host: host, Path: path, PathDisplay: path, Filename: filepath.Base(path), Ext: "",
		FileCategory: "other", SizeBytes: &size, Mtime: lastSeen.Unix(),
		LastChecked: lastSeen, LastSeenAt: lastSeen, SourceOS: "linux",
	}
	if _, err := s.UpsertFiles(context.Background(), []protocol.FileRecord{rec}); err != nil {
		t.Fatalf("UpsertFiles: %v", err)
	}
}

func TestTrimNonRecursiveDirectChildrenOnly(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	seedFile(t, s, "desktop1", "/a/top.txt", now)
	seedFile(t, s, "desktop1", "/a/sub/deep.txt", now)

	e := New(s, query.New(s, time.Minute), nil, nil)
	resp, err := e.Trim(context.Background(), protocol.TrimRequest{
		Host: "desktop1", PathPrefix: "/a", Recursive: false,
	})
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if resp.Matched != 1 || resp.Deleted != 1 {
		t.Fatalf("Trim = %+v, want Matched=1 Deleted=1 (only top.txt)", resp)
	}

	var remaining string
	row := s.DB().QueryRowContext(context.Background(), `SELECT path FROM files WHERE host=?`, "desktop1")
	if err := row.Scan(&remaining); err != nil {
		t.Fatalf("scan remaining: %v", err)
	}
	if remaining != "/a/sub/deep.txt" {
		t.Errorf("remaining = %q, want /a/sub/deep.txt", remaining)
	}
}

func TestTrimRecursiveDeletesAll(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	seedFile(t, s, "desktop1", "/a/top.txt", now)
	seedFile(t, s, "desktop1", "/a/sub/deep.txt", now)

	e := New(s, query.New(s, time.Minute), nil, nil)
	resp, err := e.Trim(context.Background(), protocol.TrimRequest{
		Host: "desktop1", PathPrefix: "/a", Recursive: true,
	})
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if resp.Matched != 2 || resp.Deleted != 2 {
		t.Errorf("Trim = %+v, want Matched=2 Deleted=2", resp)
	}
}

func TestTrimPreviewDoesNotDelete(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	seedFile(t, s, "desktop1", "/a/top.txt", now)

	e := New(s, query.New(s, time.Minute), nil, nil)
	resp, err := e.Trim(context.Background(), protocol.TrimRequest{
		Host: "desktop1", PathPrefix: "/a", Recursive: true, Preview: true,
	})
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if resp.Deleted != 0 || len(resp.PreviewPaths) != 1 {
		t.Errorf("Trim preview = %+v, want Deleted=0 with 1 preview path", resp)
	}

	var n int
	row := s.DB().QueryRowContext(context.Background(), `SELECT COUNT(*) FROM files WHERE host=?`, "desktop1")
	row.Scan(&n)
	if n != 1 {
		t.Errorf("row count after preview = %d, want 1 (untouched)", n)
	}
}

func TestTrimPatternFilter(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	seedFile(t, s, "desktop1", "/a/keep.txt", now)
	seedFile(t, s, "desktop1", "/a/remove.tmp", now)

	e := New(s, query.New(s, time.Minute), nil, nil)
	resp, err := e.Trim(context.Background(), protocol.TrimRequest{
		Host: "desktop1", PathPrefix: "/a", Recursive: true, Patterns: []string{"*.tmp"},
	})
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if resp.Deleted != 1 {
		t.Fatalf("Deleted = %d, want 1", resp.Deleted)
	}

	var remaining string
	row := s.DB().QueryRowContext(context.Background(), `SELECT path FROM files WHERE host=?`, "desktop1")
	row.Scan(&remaining)
	if remaining != "/a/keep.txt" {
		t.Errorf("remaining = %q, want /a/keep.txt", remaining)
	}
}

func TestTrimDeletedOnlyRequiresCoveringRun(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	seedFile(t, s, "desktop1", "/a/stale.txt", now)

	e := New(s, query.New(s, time.Minute), nil, nil)

	// No covering complete run yet: deleted_only must match nothing.
	resp, err := e.Trim(context.Background(), protocol.TrimRequest{
		Host: "desktop1", PathPrefix: "/a", Recursive: true, DeletedOnly: true,
	})
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if resp.Matched != 0 {
		t.Errorf("Matched = %d, want 0 (no covering complete run)", resp.Matched)
	}

	started := now.Add(time.Hour)
	id, err := s.CreateScanRun(context.Background(), protocol.ScanRunCreate{Host: "desktop1", RootPath: "/a", StartedAt: started})
	if err != nil {
		t.Fatalf("CreateScanRun: %v", err)
	}
	if err := s.PatchScanRun(context.Background(), id, protocol.ScanComplete); err != nil {
		t.Fatalf("PatchScanRun: %v", err)
	}

	resp, err = e.Trim(context.Background(), protocol.TrimRequest{
		Host: "desktop1", PathPrefix: "/a", Recursive: true, DeletedOnly: true,
	})
	if err != nil {
		t.Fatalf("Trim (after covering run): %v", err)
	}
	if resp.Matched != 1 || resp.Deleted != 1 {
		t.Errorf("Trim = %+v, want Matched=1 Deleted=1 (stale.txt predates the covering run)", resp)
	}
}

func TestTrimCountOnly(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	seedFile(t, s, "desktop1", "/a/one.txt", now)
	seedFile(t, s, "desktop1", "/a/two.txt", now)

	e := New(s, query.New(s, time.Minute), nil, nil)
	resp, err := e.Trim(context.Background(), protocol.TrimRequest{
		Host: "desktop1", PathPrefix: "/a", Recursive: true, CountOnly: true,
	})
	if err != nil {
		t.Fatalf("Trim: %v", err)
	}
	if resp.Matched != 2 || resp.Deleted != 0 {
		t.Errorf("Trim count_only = %+v, want Matched=2 Deleted=0", resp)
	}
}
