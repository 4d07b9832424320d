package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	content := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Hash(path)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}

	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])
	if got != want {
		t.Errorf("Hash() = %q, want %q", got, want)
	}
	if len(got) != 64 {
		t.Errorf("len(Hash()) = %d, want 64", len(got))
	}
}

func TestHashUnreadable(t *testing.T) {
	dir := t.TempDir()
	_, err := Hash(filepath.Join(dir, "missing.bin"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNeedsRehash(t *testing.T) {
	cached := CachedStat{Mtime: 1000, Size: 500}

	if NeedsRehash(1000.9, 500, cached) {
		t.Error("fractional mtime within the same second should not trigger a rehash")
	}
	if !NeedsRehash(1001.0, 500, cached) {
		t.Error("changed mtime should trigger a rehash")
	}
	if !NeedsRehash(1000.0, 600, cached) {
		t.Error("changed size should trigger a rehash")
	}
}
