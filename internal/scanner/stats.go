package scanner

import (
	"sync"
	"sync/atomic"
)

// scanStats accumulates the walker's counters; fields are written only from
// the single walker goroutine but read concurrently by the heartbeat, so
// every field uses atomic access.
type scanStats struct {
	scanned int64
	hashed  int64
	cached  int64
	skipped int64
	bytesS  int64
	bytesH  int64
	errors  int64
}

func (s *scanStats) addScanned()             { atomic.AddInt64(&s.scanned, 1) }
func (s *scanStats) addHashed()              { atomic.AddInt64(&s.hashed, 1) }
func (s *scanStats) addCached()              { atomic.AddInt64(&s.cached, 1) }
func (s *scanStats) addSkipped()             { atomic.AddInt64(&s.skipped, 1) }
func (s *scanStats) addBytesScanned(n int64) { atomic.AddInt64(&s.bytesS, n) }
func (s *scanStats) addBytesHashed(n int64)  { atomic.AddInt64(&s.bytesH, n) }
func (s *scanStats) addError()               { atomic.AddInt64(&s.errors, 1) }

func (s *scanStats) filesScanned() int64 { return atomic.LoadInt64(&s.scanned) }
func (s *scanStats) filesHashed() int64  { return atomic.LoadInt64(&s.hashed) }
func (s *scanStats) filesCached() int64  { return atomic.LoadInt64(&s.cached) }
func (s *scanStats) filesSkipped() int64 { return atomic.LoadInt64(&s.skipped) }
func (s *scanStats) bytesScanned() int64 { return atomic.LoadInt64(&s.bytesS) }
func (s *scanStats) bytesHashed() int64  { return atomic.LoadInt64(&s.bytesH) }
func (s *scanStats) readErrors() int64   { return atomic.LoadInt64(&s.errors) }

// currentFileHolder lets the walker publish the file it's currently hashing
// without the heartbeat taking the same lock the walker uses for anything
// else.
type currentFileHolder struct {
	mu   sync.RWMutex
	path string
}

func (h *currentFileHolder) set(path string) {
	h.mu.Lock()
	h.path = path
	h.mu.Unlock()
}

func (h *currentFileHolder) get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path
}
