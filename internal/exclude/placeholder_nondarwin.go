//go:build !darwin

package exclude

import "os"

// MacOSDataless is always false outside darwin.
func MacOSDataless(fi os.FileInfo) bool {
	return false
}
