package scanner

import (
	"sync"

	"github.com/sift-inventory/sift/internal/protocol"
)

// upsertQueue buffers FileRecord batches awaiting an upsert flush. A
// separate flushMu (try-acquired, never blocking) guards against two
// flushers running concurrently: the heartbeat and an inline caller draining
// a full batch. A caller that fails to acquire flushMu returns without
// draining, and a drained batch whose send fails is restored to the queue
// head, so no record is ever lost to a concurrent or failed flush attempt.
type upsertQueue struct {
	mu      sync.Mutex
	flushMu sync.Mutex
	records []protocol.FileRecord
}

func (q *upsertQueue) push(r protocol.FileRecord) {
	q.mu.Lock()
	q.records = append(q.records, r)
	q.mu.Unlock()
}

func (q *upsertQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// drain removes up to n records (0 means all) for flushing. The caller must
// already hold flushMu.
func (q *upsertQueue) drain(n int) []protocol.FileRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n >= len(q.records) {
		out := q.records
		q.records = nil
		return out
	}
	out := q.records[:n]
	q.records = q.records[n:]
	return out
}

// restore puts a previously drained batch back at the queue head.
func (q *upsertQueue) restore(batch []protocol.FileRecord) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	q.records = append(batch, q.records...)
	q.mu.Unlock()
}

// tryFlush attempts a non-blocking flush of the whole queue via send.
// Returns false without draining if another flush is already in progress.
func (q *upsertQueue) tryFlush(send func([]protocol.FileRecord) error) bool {
	if !q.flushMu.TryLock() {
		return false
	}
	defer q.flushMu.Unlock()

	batch := q.drain(0)
	if len(batch) == 0 {
		return true
	}
	if err := send(batch); err != nil {
		q.restore(batch)
		return false
	}
	return true
}

// forceFlush blocks until it holds flushMu, then sends every currently
// queued record as one batch; if send fails the batch is restored to the
// queue head and the error returned (used during finalization and
// interrupt handling, where callers must not silently drop records).
func (q *upsertQueue) forceFlush(send func([]protocol.FileRecord) error) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	batch := q.drain(0)
	if len(batch) == 0 {
		return nil
	}
	if err := send(batch); err != nil {
		q.restore(batch)
		return err
	}
	return nil
}

// seenQueue is the same shape as upsertQueue for {drive, path} touches,
// kept as a distinct type rather than a shared generic since the two
// queues are independently tuned (different size triggers, different
// payload types).
type seenQueue struct {
	mu      sync.Mutex
	flushMu sync.Mutex
	paths   []protocol.SeenPath
}

func (q *seenQueue) push(p protocol.SeenPath) {
	q.mu.Lock()
	q.paths = append(q.paths, p)
	q.mu.Unlock()
}

func (q *seenQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.paths)
}

func (q *seenQueue) drain(n int) []protocol.SeenPath {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n <= 0 || n >= len(q.paths) {
		out := q.paths
		q.paths = nil
		return out
	}
	out := q.paths[:n]
	q.paths = q.paths[n:]
	return out
}

func (q *seenQueue) restore(batch []protocol.SeenPath) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	q.paths = append(batch, q.paths...)
	q.mu.Unlock()
}

func (q *seenQueue) tryFlush(send func([]protocol.SeenPath) error) bool {
	if !q.flushMu.TryLock() {
		return false
	}
	defer q.flushMu.Unlock()

	batch := q.drain(0)
	if len(batch) == 0 {
		return true
	}
	if err := send(batch); err != nil {
		q.restore(batch)
		return false
	}
	return true
}

func (q *seenQueue) forceFlush(send func([]protocol.SeenPath) error) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	batch := q.drain(0)
	if len(batch) == 0 {
		return nil
	}
	if err := send(batch); err != nil {
		q.restore(batch)
		return err
	}
	return nil
}
