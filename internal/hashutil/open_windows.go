//go:build windows

package hashutil

import (
	"os"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"

	"github.com/sift-inventory/sift/internal/pathnorm"
)

// openForHash opens path using go-winio's backup-semantics open, which
// bypasses the file's DACL the way a backup application would and
// tolerates the long-path form produced by pathnorm.SafePath. This lets the
// hasher read files a normal os.Open would fail on (sharing-locked by
// another process, or whose ACL denies ordinary read but allows backup
// read).
func openForHash(path string) (*os.File, error) {
	safe := pathnorm.SafePath(path)
	return winio.OpenForBackup(safe, windows.GENERIC_READ, windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE, windows.OPEN_EXISTING)
}
