//go:build windows

package scanner

import "runtime"

// flushWorkerCount has no sysconf(3) equivalent on Windows, so it falls
// back to runtime.NumCPU.
func flushWorkerCount() int {
	return clampFlushWorkers(runtime.NumCPU())
}
