package query

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sift-inventory/sift/internal/protocol"
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

type seedFile struct {
	host, path, filename, ext, category, hash string
	size                                       int64
	inode, device                              uint64
	hasInode                                   bool
}

func seed(t *testing.T, s *store.Store, files []seedFile) {
	t.Helper()
	now := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	var records []protocol.FileRecord
	for _, f := range files {
		size := f.size
		r := protocol.FileRecord{
			Host: f.host, Path: f.path, PathDisplay: f.path, Filename: f.filename, Ext: f.ext,
			FileCategory: protocol.FileCategory(f.category), SizeBytes: &size,
			Mtime: now.Unix(), LastChecked: now, LastSeenAt: now, SourceOS: "linux",
		}
		if f.hash != "" {
			hash := f.hash
			r.Hash = &hash
		}
		if f.hasInode {
			inode, device := f.inode, f.device
			r.Inode, r.Device = &inode, &device
		}
		records = append(records, r)
	}
	if _, err := s.UpsertFiles(context.Background(), records); err != nil {
		t.Fatalf("seed UpsertFiles: %v", err)
	}
}

func TestEngineLsAggregatesAndDetectsDuplicates(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, []seedFile{
		{host: "desktop1", path: "/home/brian/photos/a.jpg", filename: "a.jpg", ext: "jpg", category: "image", hash: "h1", size: 100},
		{host: "desktop1", path: "/home/brian/photos/b.jpg", filename: "b.jpg", ext: "jpg", category: "image", hash: "h1", size: 100},
		{host: "desktop1", path: "/home/brian/docs/c.txt", filename: "c.txt", ext: "txt", category: "document", hash: "h2", size: 50},
	})

	e := New(s, time.Minute)
	entries, err := e.Ls(context.Background(), "desktop1", "/home/brian", 1, 0)
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (docs, photos): %+v", len(entries), entries)
	}

	var photos *protocol.LsEntry
	for i := range entries {
		if entries[i].Segment == "photos" {
			photos = &entries[i]
		}
	}
	if photos == nil {
		t.Fatal("missing photos group")
	}
	if photos.FileCount != 2 {
		t.Errorf("photos.FileCount = %d, want 2", photos.FileCount)
	}
	if photos.DupCount != 2 {
		t.Errorf("photos.DupCount = %d, want 2", photos.DupCount)
	}
	if photos.DupHashCount != 1 {
		t.Errorf("photos.DupHashCount = %d, want 1", photos.DupHashCount)
	}
}

func TestEngineLsExcludesHardLinkedFromDupeCount(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, []seedFile{
		{host: "desktop1", path: "/home/brian/a.jpg", filename: "a.jpg", ext: "jpg", category: "image", hash: "h1", size: 100, hasInode: true, inode: 5, device: 1},
		{host: "desktop1", path: "/home/brian/b.jpg", filename: "b.jpg", ext: "jpg", category: "image", hash: "h1", size: 100, hasInode: true, inode: 5, device: 1},
	})

	e := New(s, time.Minute)
	entries, err := e.Ls(context.Background(), "desktop1", "/home/brian", 1, 0)
	if err != nil {
		t.Fatalf("Ls: %v", err)
	}
	for _, entry := range entries {
		if entry.DupCount != 0 {
			t.Errorf("entry %q DupCount = %d, want 0 (hard-linked, not a true duplicate)", entry.Segment, entry.DupCount)
		}
	}
}

func TestEngineSearchByGlobAndHash(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, []seedFile{
		{host: "desktop1", path: "/home/brian/report.pdf", filename: "report.pdf", ext: "pdf", category: "document", hash: "abc123", size: 10},
		{host: "desktop1", path: "/home/brian/REPORT2.PDF", filename: "REPORT2.PDF", ext: "pdf", category: "document", hash: "def456", size: 20},
	})
	e := New(s, time.Minute)

	got, err := e.Search(context.Background(), SearchParams{Host: "desktop1", IName: "report*.pdf"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("iname search got %d results, want 2", len(got))
	}

	got, err = e.Search(context.Background(), SearchParams{Host: "desktop1", Hash: "abc"})
	if err != nil {
		t.Fatalf("Search by hash prefix: %v", err)
	}
	if len(got) != 1 || got[0].Filename != "report.pdf" {
		t.Errorf("hash-prefix search got %+v, want [report.pdf]", got)
	}
}

func TestEngineDuplicateSetsRanksByWastedBytes(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, []seedFile{
		{host: "desktop1", path: "/a/big1", filename: "big1", ext: "", category: "other", hash: "big", size: 1000},
		{host: "desktop1", path: "/a/big2", filename: "big2", ext: "", category: "other", hash: "big", size: 1000},
		{host: "desktop1", path: "/a/small1", filename: "small1", ext: "", category: "other", hash: "small", size: 10},
		{host: "desktop1", path: "/a/small2", filename: "small2", ext: "", category: "other", hash: "small", size: 10},
		{host: "desktop1", path: "/a/small3", filename: "small3", ext: "", category: "other", hash: "small", size: 10},
	})
	e := New(s, time.Minute)

	sets, err := e.DuplicateSets(context.Background(), "desktop1", 0, 10)
	if err != nil {
		t.Fatalf("DuplicateSets: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("got %d sets, want 2", len(sets))
	}
	if sets[0].Hash != "big" {
		t.Errorf("top set = %q, want %q (1000 wasted bytes beats 20)", sets[0].Hash, "big")
	}
	if sets[1].Copies != 3 {
		t.Errorf("small set copies = %d, want 3", sets[1].Copies)
	}
}

func TestEngineHosts(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, []seedFile{
		{host: "desktop1", path: "/a/f.txt", filename: "f.txt", ext: "txt", category: "document", size: 5},
	})
	started := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	if _, err := s.CreateScanRun(context.Background(), protocol.ScanRunCreate{Host: "desktop1", RootPath: "/a", StartedAt: started}); err != nil {
		t.Fatalf("CreateScanRun: %v", err)
	}
	if _, err := s.RefreshHostStats(context.Background(), "desktop1", started); err != nil {
		t.Fatalf("RefreshHostStats: %v", err)
	}

	e := New(s, time.Minute)
	hosts, err := e.Hosts(context.Background())
	if err != nil {
		t.Fatalf("Hosts: %v", err)
	}
	if len(hosts) != 1 || hosts[0].Host != "desktop1" || hosts[0].TotalFiles != 1 {
		t.Errorf("Hosts = %+v, want one desktop1 row with TotalFiles=1", hosts)
	}
}

func TestEngineDirectories(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, []seedFile{
		{host: "desktop1", path: "/home/brian/photos/a.jpg", filename: "a.jpg", ext: "jpg", category: "image", size: 5},
		{host: "desktop1", path: "/home/brian/docs/b.txt", filename: "b.txt", ext: "txt", category: "document", size: 5},
		{host: "desktop1", path: "/home/brian/top.txt", filename: "top.txt", ext: "txt", category: "document", size: 5},
	})
	e := New(s, time.Minute)

	dirs, err := e.Directories(context.Background(), "desktop1", "/home/brian")
	if err != nil {
		t.Fatalf("Directories: %v", err)
	}
	if len(dirs) != 2 || dirs[0] != "docs" || dirs[1] != "photos" {
		t.Errorf("Directories = %v, want [docs photos]", dirs)
	}
}

func TestOverviewCacheInvalidation(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, []seedFile{
		{host: "desktop1", path: "/a/f.txt", filename: "f.txt", ext: "txt", category: "document", size: 5},
	})
	e := New(s, time.Hour)

	first, err := e.Overview(context.Background(), nil, nil, 0)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if first.TotalFiles != 1 {
		t.Fatalf("TotalFiles = %d, want 1", first.TotalFiles)
	}

	seed(t, s, []seedFile{
		{host: "desktop1", path: "/a/g.txt", filename: "g.txt", ext: "txt", category: "document", size: 5},
	})
	e.Invalidate()

	second, err := e.Overview(context.Background(), nil, nil, 0)
	if err != nil {
		t.Fatalf("Overview after invalidate: %v", err)
	}
	if second.TotalFiles != 2 {
		t.Errorf("TotalFiles after invalidate = %d, want 2", second.TotalFiles)
	}
}

func TestGlobToLike(t *testing.T) {
	cases := map[string]string{
		"*.txt":      "%.txt",
		"file?.log":  `file_.log`,
		"100%_done":  `100\%\_done`,
		`back\slash`: `back\\slash`,
	}
	for in, want := range cases {
		if got := globToLike(in); got != want {
			t.Errorf("globToLike(%q) = %q, want %q", in, got, want)
		}
	}
}
