package scanner

import (
	"context"
	"time"

	"github.com/sift-inventory/sift/internal/progress"
)

// heartbeatInterval is the fixed cadence of the background flush/progress
// thread, independent of the progress reporter's own (slower) redraw rate.
const heartbeatInterval = 250 * time.Millisecond

// runHeartbeat advances the progress line and opportunistically flushes both
// queues every heartbeatInterval, until stopCh closes. It never blocks: both
// flush attempts are try-acquire and handed to the flush pool, so a slow
// ingest-service round trip on one queue never delays the other or the next
// tick's progress redraw.
func (o *Orchestrator) runHeartbeat(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			o.renderProgress(now)
			o.flushPool.submit(func() { o.tryFlushUpserts(ctx) })
			o.flushPool.submit(func() { o.tryFlushSeen(ctx, o.host, o.scanStart) })
		}
	}
}

func (o *Orchestrator) renderProgress(now time.Time) {
	if o.Config.Quiet {
		return
	}
	total, isEstimate := o.precount.value()
	snap := progress.Snapshot{
		FilesScanned:    o.stats.filesScanned(),
		BytesScanned:    o.stats.bytesScanned(),
		BytesHashed:     o.stats.bytesHashed(),
		Total:           total,
		TotalIsEstimate: isEstimate,
		CurrentFile:     o.curFile.get(),
	}
	o.reporter.MaybeRender(now, snap)
}
