//go:build !windows

package exclude

import (
	"os"

	"golang.org/x/sys/unix"
)

// SparseFile reports whether fi looks like a sparse file: at least 1 GiB
// logical size with allocated blocks covering less than a tenth of it.
// Windows has its own cloud-placeholder signal instead (placeholder_windows.go).
func SparseFile(fi os.FileInfo) bool {
	st, ok := fi.Sys().(*unix.Stat_t)
	if !ok {
		return false
	}
	size := fi.Size()
	if size < 1<<30 {
		return false
	}
	allocated := int64(st.Blocks) * 512
	return allocated < size/10
}

// InodeDevice extracts the (inode, device) identity pair from fi, used for
// hard-link detection. ok is false when fi carries no unix.Stat_t.
func InodeDevice(fi os.FileInfo) (inode, device uint64, ok bool) {
	st, ok := fi.Sys().(*unix.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return st.Ino, uint64(st.Dev), true
}
