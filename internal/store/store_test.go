package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sift-inventory/sift/internal/protocol"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(host, path string) protocol.FileRecord {
	size := int64(1024)
	hash := "deadbeef"
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	return protocol.FileRecord{
		Host: host, Path: path, PathDisplay: path, Filename: "a.txt", Ext: "txt",
		FileCategory: "document", SizeBytes: &size, Hash: &hash, Mtime: now.Unix(),
		LastChecked: now, SourceOS: "linux", LastSeenAt: now,
	}
}

func TestUpsertFilesAndConflictReplace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("desktop1", "/home/brian/a.txt")
	n, err := s.UpsertFiles(ctx, []protocol.FileRecord{rec})
	if err != nil {
		t.Fatalf("UpsertFiles: %v", err)
	}
	if n != 1 {
		t.Errorf("upserted = %d, want 1", n)
	}

	rec.Filename = "renamed.txt"
	if _, err := s.UpsertFiles(ctx, []protocol.FileRecord{rec}); err != nil {
		t.Fatalf("UpsertFiles (conflict path): %v", err)
	}

	var filename string
	row := s.DB().QueryRowContext(ctx, `SELECT filename FROM files WHERE host=? AND path=?`, "desktop1", "/home/brian/a.txt")
	if err := row.Scan(&filename); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if filename != "renamed.txt" {
		t.Errorf("filename after conflict update = %q, want renamed.txt", filename)
	}
}

func TestMarkSeen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("desktop1", "/home/brian/a.txt")
	if _, err := s.UpsertFiles(ctx, []protocol.FileRecord{rec}); err != nil {
		t.Fatalf("UpsertFiles: %v", err)
	}

	seenAt := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	n, err := s.MarkSeen(ctx, "desktop1", seenAt, []protocol.SeenPath{{Drive: "", Path: "/home/brian/a.txt"}})
	if err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if n != 1 {
		t.Errorf("updated = %d, want 1", n)
	}

	var got time.Time
	row := s.DB().QueryRowContext(ctx, `SELECT last_seen_at FROM files WHERE host=? AND path=?`, "desktop1", "/home/brian/a.txt")
	if err := row.Scan(&got); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !got.Equal(seenAt) {
		t.Errorf("last_seen_at = %v, want %v", got, seenAt)
	}
}

func TestStreamCache(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/home/brian/a.txt", "/home/brian/sub/b.txt", "/home/other/c.txt"} {
		if _, err := s.UpsertFiles(ctx, []protocol.FileRecord{sampleRecord("desktop1", p)}); err != nil {
			t.Fatalf("UpsertFiles: %v", err)
		}
	}

	var got []string
	err := s.StreamCache(ctx, "desktop1", "/home/brian", func(r CacheRow) error {
		got = append(got, r.Path)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamCache: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d rows, want 2: %v", len(got), got)
	}
}

func TestRefreshAndGetHostStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.GetHostStats(ctx, "desktop1"); err != nil || ok {
		t.Fatalf("GetHostStats before refresh = (ok=%v, err=%v), want ok=false, err=nil", ok, err)
	}

	rec := sampleRecord("desktop1", "/home/brian/a.txt")
	if _, err := s.UpsertFiles(ctx, []protocol.FileRecord{rec}); err != nil {
		t.Fatalf("UpsertFiles: %v", err)
	}

	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	hs, err := s.RefreshHostStats(ctx, "desktop1", now)
	if err != nil {
		t.Fatalf("RefreshHostStats: %v", err)
	}
	if hs.TotalFiles != 1 || hs.TotalBytes != 1024 || hs.TotalHashed != 1 {
		t.Errorf("RefreshHostStats = %+v, want TotalFiles=1 TotalBytes=1024 TotalHashed=1", hs)
	}

	got, ok, err := s.GetHostStats(ctx, "desktop1")
	if err != nil || !ok {
		t.Fatalf("GetHostStats after refresh = (ok=%v, err=%v)", ok, err)
	}
	if !got.RefreshedAt.Equal(now) {
		t.Errorf("RefreshedAt = %v, want %v", got.RefreshedAt, now)
	}
}

func TestScanRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	id1, err := s.CreateScanRun(ctx, protocol.ScanRunCreate{Host: "desktop1", RootPath: "/home/brian", StartedAt: started})
	if err != nil {
		t.Fatalf("CreateScanRun: %v", err)
	}

	id2, err := s.CreateScanRun(ctx, protocol.ScanRunCreate{Host: "desktop1", RootPath: "/home/brian", StartedAt: started.Add(time.Hour)})
	if err != nil {
		t.Fatalf("CreateScanRun (second): %v", err)
	}
	if id2 == id1 {
		t.Fatal("expected distinct run ids")
	}

	var status string
	row := s.DB().QueryRowContext(ctx, `SELECT status FROM scan_runs WHERE id = ?`, id1)
	if err := row.Scan(&status); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if status != "failed" {
		t.Errorf("prior run status = %q, want failed (demoted by second CreateScanRun)", status)
	}

	if err := s.PatchScanRun(ctx, id2, protocol.ScanComplete); err != nil {
		t.Fatalf("PatchScanRun: %v", err)
	}

	run, ok, err := s.CoveringCompleteRun(ctx, "desktop1", "/home/brian/photos")
	if err != nil {
		t.Fatalf("CoveringCompleteRun: %v", err)
	}
	if !ok || run.ID != id2 {
		t.Errorf("CoveringCompleteRun = (%+v, %v), want id2=%d", run, ok, id2)
	}
}
