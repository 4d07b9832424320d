//go:build !windows

package hashutil

import "os"

func openForHash(path string) (*os.File, error) {
	return os.Open(path)
}
