// Package scanner implements the scan orchestrator: the agent-side pipeline
// that walks a directory tree, classifies and hashes its files, and ships
// the results to the inventory service under backpressure.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sift-inventory/sift/internal/exclude"
	"github.com/sift-inventory/sift/internal/hashutil"
	"github.com/sift-inventory/sift/internal/ingestclient"
	"github.com/sift-inventory/sift/internal/pathnorm"
	"github.com/sift-inventory/sift/internal/progress"
	"github.com/sift-inventory/sift/internal/protocol"
)

// ErrInterrupted is returned by Run when the scan was aborted by context
// cancellation (a user interrupt), after a best-effort flush and a PATCH
// to interrupted.
var ErrInterrupted = errors.New("scanner: scan interrupted")

// Config carries the per-invocation knobs a scan needs beyond the client
// and reporter it's constructed with.
type Config struct {
	Root                  string // resolved, symlink-free absolute path
	Host                  string
	OneFilesystem         bool
	AllowUnraidRawDisk    bool
	VolatileThresholdDays int
	Quiet                 bool
	Debug                 bool
}

type hardLinkKey struct {
	device, inode uint64
}

// Orchestrator drives one scan from registration through finalization. It
// is single-use: construct a fresh one per Run call.
type Orchestrator struct {
	Client *ingestclient.Client
	Config Config

	source      pathnorm.SourceOS
	excludeOpts exclude.Options
	mounts      *exclude.MountRegistry
	flushPool   *flushPool

	reporter *progress.Reporter
	stats    scanStats
	curFile  currentFileHolder
	precount precountResult
	errLog   *errorLog

	upsertQ upsertQueue
	seenQ   seenQueue

	lastUpsertFlushNano int64
	lastSeenFlushNano   int64

	cache     map[string]hashutil.CachedStat
	hardLinks map[hardLinkKey]string

	host      string
	scanStart time.Time
}

// New builds an Orchestrator. reporter may be nil when cfg.Quiet is true.
func New(cfg Config, client *ingestclient.Client, reporter *progress.Reporter) *Orchestrator {
	mounts, _ := exclude.NewMountRegistry()

	dockerCtx, dockerCancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	dockerRoot, _ := exclude.DockerStorageRoot(dockerCtx)
	dockerCancel()

	return &Orchestrator{
		Client: client,
		Config: cfg,
		source: pathnorm.CurrentOS(),
		excludeOpts: exclude.Options{
			IsUnraid:           exclude.DetectUnraid(),
			AllowUnraidRawDisk: cfg.AllowUnraidRawDisk,
			DockerRoot:         dockerRoot,
		},
		mounts:    mounts,
		flushPool: newFlushPool(flushWorkerCount()),
		reporter:  reporter,
		errLog:    newErrorLog(),
		hardLinks: make(map[hardLinkKey]string),
	}
}

// Result summarizes a completed (or aborted) scan for the CLI's closing
// status line.
type Result struct {
	FilesScanned int64
	FilesHashed  int64
	FilesCached  int64
	FilesSkipped int64
	BytesScanned int64
	ReadErrors   int64
	ErrorLogPath string
	Elapsed      time.Duration
}

func (o *Orchestrator) result(elapsed time.Duration) Result {
	return Result{
		FilesScanned: o.stats.filesScanned(),
		FilesHashed:  o.stats.filesHashed(),
		FilesCached:  o.stats.filesCached(),
		FilesSkipped: o.stats.filesSkipped(),
		BytesScanned: o.stats.bytesScanned(),
		ReadErrors:   o.stats.readErrors(),
		ErrorLogPath: o.errLog.path,
		Elapsed:      elapsed,
	}
}

// Run executes the full Phase 0-4 pipeline. ctx cancellation is treated as
// a user interrupt: the walk stops, buffered upserts are flushed with the
// shortened interrupt retry deadline, and the run is patched to
// interrupted before Run returns ErrInterrupted.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	o.host = o.Config.Host
	o.scanStart = time.Now().UTC()
	started := time.Now()

	norm := pathnorm.ForStorage(o.Config.Root)

	runID, err := o.Client.CreateScanRun(ctx, protocol.ScanRunCreate{
		Host:            o.host,
		RootPath:        norm.Path,
		RootPathDisplay: norm.PathDisplay,
		StartedAt:       o.scanStart,
	})
	if err != nil {
		return o.result(time.Since(started)), fmt.Errorf("register scan run: %w", err)
	}

	var rootDev *uint64
	if o.Config.OneFilesystem {
		if fi, statErr := os.Stat(o.Config.Root); statErr == nil {
			if _, dev, ok := exclude.InodeDevice(fi); ok {
				rootDev = &dev
			}
		}
	}

	stopPrecount := make(chan struct{})
	if !o.Config.Quiet {
		go runPrecount(o.Config.Root, o.source, o.excludeOpts, rootDev, stopPrecount, &o.precount)
	}
	defer close(stopPrecount)

	o.cache = make(map[string]hashutil.CachedStat)
	if cacheErr := o.Client.StreamCache(ctx, o.host, norm.Path, func(e protocol.CacheEntry) error {
		o.cache[e.Path] = hashutil.CachedStat{Mtime: e.Mtime, Size: e.Size}
		return nil
	}); cacheErr != nil {
		fmt.Fprintf(os.Stderr, "sift: warning: could not fetch cache: %v\n", cacheErr)
		o.cache = map[string]hashutil.CachedStat{}
	}

	heartbeatStop := make(chan struct{})
	go o.runHeartbeat(ctx, heartbeatStop)

	walkErr := o.walk(ctx, o.Config.Root, rootDev)
	close(heartbeatStop)
	o.flushPool.stop()
	o.curFile.set("")
	o.errLog.close()

	if walkErr != nil && (errors.Is(walkErr, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)) {
		o.Client.Retry = ingestclient.InterruptRetryPolicy()
		flushCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		o.upsertQ.forceFlush(o.upsertSender(flushCtx))
		o.bestEffortPatch(flushCtx, runID, protocol.ScanInterrupted)
		return o.result(time.Since(started)), ErrInterrupted
	}

	if walkErr != nil {
		o.bestEffortPatch(context.Background(), runID, protocol.ScanFailed)
		return o.result(time.Since(started)), fmt.Errorf("walk: %w", walkErr)
	}

	if err := o.upsertQ.forceFlush(o.upsertSender(ctx)); err != nil {
		o.bestEffortPatch(context.Background(), runID, protocol.ScanFailed)
		return o.result(time.Since(started)), fmt.Errorf("final upsert flush: %w", err)
	}
	if err := o.seenQ.forceFlush(o.seenSender(ctx, o.host, o.scanStart)); err != nil {
		o.bestEffortPatch(context.Background(), runID, protocol.ScanFailed)
		return o.result(time.Since(started)), fmt.Errorf("final seen flush: %w", err)
	}

	if err := o.Client.PatchScanRun(ctx, runID, protocol.ScanComplete); err != nil {
		return o.result(time.Since(started)), fmt.Errorf("mark scan complete: %w", err)
	}

	res := o.result(time.Since(started))
	if !o.Config.Quiet && o.reporter != nil {
		total, isEstimate := o.precount.value()
		o.reporter.Final(progress.Snapshot{
			FilesScanned:    res.FilesScanned,
			BytesScanned:    res.BytesScanned,
			BytesHashed:     o.stats.bytesHashed(),
			Total:           total,
			TotalIsEstimate: isEstimate,
		})
	}
	return res, nil
}

// bestEffortPatch patches a scan run's terminal status, logging rather than
// returning any error: the scan's own outcome is already decided by the
// time this is called.
func (o *Orchestrator) bestEffortPatch(ctx context.Context, runID int64, status protocol.ScanRunStatus) {
	patchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := o.Client.PatchScanRun(patchCtx, runID, status); err != nil {
		fmt.Fprintf(os.Stderr, "sift: warning: failed to mark scan %s: %v\n", status, err)
	}
}
