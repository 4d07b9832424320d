package scanner

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sift-inventory/sift/internal/classify"
	"github.com/sift-inventory/sift/internal/exclude"
	"github.com/sift-inventory/sift/internal/pathnorm"
)

// precountTimeout is the hard deadline after which the precount worker
// abandons silently, so a hung mount or stale share never holds up the
// scan's progress reporting.
const precountTimeout = 20 * time.Minute

// precountResult is the shared slot the precount worker writes into and the
// progress reporter polls. done is set exactly once, after which count is
// safe to read.
type precountResult struct {
	count int64
	done  int32
}

func (r *precountResult) value() (int64, bool) {
	if atomic.LoadInt32(&r.done) == 0 {
		return 0, false
	}
	return atomic.LoadInt64(&r.count), true
}

// runPrecount walks root applying the same directory/file exclusions as the
// main walker, skipping symlinks, and counts eligible files. It runs as a
// daemon goroutine: stopCh signals early abandonment (user interrupt), and
// the 20-minute deadline is a second, independent abandonment trigger.
func runPrecount(root string, source pathnorm.SourceOS, opts exclude.Options, rootDev *uint64, stopCh <-chan struct{}, result *precountResult) {
	deadline := time.Now().Add(precountTimeout)
	var count int64

	var walk func(dir string) bool // returns false to abort
	walk = func(dir string) bool {
		select {
		case <-stopCh:
			return false
		default:
		}
		if time.Now().After(deadline) {
			return false
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return true
		}

		for _, entry := range entries {
			select {
			case <-stopCh:
				return false
			default:
			}

			full := filepath.Join(dir, entry.Name())
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.Mode()&os.ModeSymlink != 0 {
				continue
			}

			if entry.IsDir() {
				if rootDev != nil {
					if _, dev, ok := exclude.InodeDevice(info); ok && dev != *rootDev {
						continue
					}
				}
				if exclude.Dir(full, entry.Name(), source, opts) {
					continue
				}
				if !walk(full) {
					return false
				}
				continue
			}

			if !info.Mode().IsRegular() {
				continue
			}
			ext, _ := classify.File(entry.Name())
			if exclude.File(entry.Name(), ext) {
				continue
			}
			count++
		}
		return true
	}

	if walk(root) {
		atomic.StoreInt64(&result.count, count)
		atomic.StoreInt32(&result.done, 1)
	}
}
