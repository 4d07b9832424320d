//go:build !windows

package scanner

import "github.com/tklauser/go-sysconf"

// flushWorkerCount reads the online processor count via sysconf. A flush
// worker spends almost all its time blocked on the ingest client's HTTP
// round trip; the pool gets one worker per online core, clamped to
// [minFlushWorkers, maxFlushWorkers].
func flushWorkerCount() int {
	n, err := sysconf.Sysconf(sysconf.SC_NPROCESSORS_ONLN)
	if err != nil || n <= 0 {
		return defaultFlushWorkers
	}
	return clampFlushWorkers(int(n))
}
