package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sift-inventory/sift/internal/protocol"
)

const (
	upsertSizeTrigger = 1000
	seenSizeTrigger   = 2000
	flushInterval     = 10 * time.Second
)

func (o *Orchestrator) upsertSender(ctx context.Context) func([]protocol.FileRecord) error {
	return func(batch []protocol.FileRecord) error {
		_, err := o.Client.PostFiles(ctx, batch)
		return err
	}
}

func (o *Orchestrator) seenSender(ctx context.Context, host string, lastSeenAt time.Time) func([]protocol.SeenPath) error {
	return func(batch []protocol.SeenPath) error {
		_, err := o.Client.PostSeen(ctx, host, lastSeenAt, batch)
		return err
	}
}

func (o *Orchestrator) pushUpsert(rec protocol.FileRecord) {
	o.upsertQ.push(rec)
}

// pushSeen enqueues a cache-hit touch and hands a non-blocking flush
// attempt to the flush pool. The heartbeat's 250ms cadence alone would lag
// behind a scan that's almost entirely cache hits, and running the send
// inline here would stall the walker on every trigger.
func (o *Orchestrator) pushSeen(ctx context.Context, host string, lastSeenAt time.Time, entry protocol.SeenPath) {
	o.seenQ.push(entry)
	o.flushPool.submit(func() { o.maybeFlushSeen(ctx, host, lastSeenAt, false) })
}

func (o *Orchestrator) maybeFlushUpserts(ctx context.Context, force bool) {
	due := force || o.upsertQ.len() >= upsertSizeTrigger || time.Since(o.lastUpsertFlush()) >= flushInterval
	if !due {
		return
	}
	if o.upsertQ.tryFlush(o.upsertSender(ctx)) {
		o.setLastUpsertFlush(time.Now())
	}
}

func (o *Orchestrator) maybeFlushSeen(ctx context.Context, host string, lastSeenAt time.Time, force bool) {
	due := force || o.seenQ.len() >= seenSizeTrigger || time.Since(o.lastSeenFlush()) >= flushInterval
	if !due {
		return
	}
	if o.seenQ.tryFlush(o.seenSender(ctx, host, lastSeenAt)) {
		o.setLastSeenFlush(time.Now())
	}
}

func (o *Orchestrator) tryFlushUpserts(ctx context.Context) { o.maybeFlushUpserts(ctx, false) }

func (o *Orchestrator) tryFlushSeen(ctx context.Context, host string, lastSeenAt time.Time) {
	o.maybeFlushSeen(ctx, host, lastSeenAt, false)
}

func (o *Orchestrator) lastUpsertFlush() time.Time {
	return time.Unix(0, atomic.LoadInt64(&o.lastUpsertFlushNano))
}

func (o *Orchestrator) setLastUpsertFlush(t time.Time) {
	atomic.StoreInt64(&o.lastUpsertFlushNano, t.UnixNano())
}

func (o *Orchestrator) lastSeenFlush() time.Time {
	return time.Unix(0, atomic.LoadInt64(&o.lastSeenFlushNano))
}

func (o *Orchestrator) setLastSeenFlush(t time.Time) {
	atomic.StoreInt64(&o.lastSeenFlushNano, t.UnixNano())
}
