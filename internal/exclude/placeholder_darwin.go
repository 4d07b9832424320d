//go:build darwin

package exclude

import (
	"os"

	"golang.org/x/sys/unix"
)

// MacOSDataless reports whether fi is an APFS cloud-evicted stub: zero
// blocks allocated despite a (possibly nonzero) logical size.
func MacOSDataless(fi os.FileInfo) bool {
	st, ok := fi.Sys().(*unix.Stat_t)
	if !ok {
		return false
	}
	return st.Blocks == 0
}
