package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/sift-inventory/sift/internal/classify"
	"github.com/sift-inventory/sift/internal/exclude"
	"github.com/sift-inventory/sift/internal/hashutil"
	"github.com/sift-inventory/sift/internal/pathnorm"
	"github.com/sift-inventory/sift/internal/protocol"
)

// recentlyModifiedWindow is how fresh an mtime has to be for the
// recently_modified skip predicate to fire. A file still being written
// gets recorded without a hash rather than risking a hash of a half-written
// file.
const recentlyModifiedWindow = 60 * time.Second

// walk performs the depth-first traversal and dispatch of Phase 2: prune
// excluded directories in place, classify and hash eligible files.
func (o *Orchestrator) walk(ctx context.Context, root string, rootDev *uint64) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if o.Config.Debug {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			info, infoErr := d.Info()
			if infoErr != nil {
				return fs.SkipDir
			}
			if exclude.Dir(path, d.Name(), o.source, o.excludeOpts) {
				return fs.SkipDir
			}
			if o.mounts != nil && o.mounts.IsNetworkMount(path) {
				return fs.SkipDir
			}
			if rootDev != nil {
				if _, dev, ok := exclude.InodeDevice(info); ok && dev != *rootDev {
					return fs.SkipDir
				}
			}
			return nil
		}

		o.dispatchFile(ctx, path, d)
		return nil
	})
}

// dispatchFile implements Phase 2 steps 1-6 for a single regular,
// non-symlink file. Errors reading the file are logged and counted, never
// propagated: a single unreadable file must not abort the scan.
func (o *Orchestrator) dispatchFile(ctx context.Context, path string, d fs.DirEntry) {
	info, err := d.Info()
	if err != nil {
		o.errLog.record(o.scanStart, o.host, o.Config.Root, path)
		o.stats.addError()
		return
	}
	if !info.Mode().IsRegular() || info.Size() == 0 {
		return
	}

	ext, category := classify.File(d.Name())
	if exclude.File(d.Name(), ext) {
		return
	}

	norm := pathnorm.Path(path, o.source)
	size := info.Size()
	mtime := info.ModTime().Unix()

	o.curFile.set(path)
	o.stats.addBytesScanned(size)
	o.stats.addScanned()

	in := recordInput{
		host: o.host, norm: norm, filename: d.Name(), ext: ext, category: category,
		size: size, mtime: mtime, sourceOS: o.source, checkedAt: o.scanStart,
	}
	if inode, device, ok := exclude.InodeDevice(info); ok {
		in.inode, in.device = &inode, &device
	}

	if cached, ok := o.cache[norm.Path]; ok && !hashutil.NeedsRehash(float64(mtime), size, cached) {
		o.pushSeen(ctx, o.host, o.scanStart, protocol.SeenPath{Drive: norm.Drive, Path: norm.Path})
		o.stats.addCached()
		return
	}

	if reason, skip := o.skipReason(path, ext, info); skip {
		in.skippedReason = reason
		o.pushUpsert(in.toFileRecord())
		o.stats.addSkipped()
		return
	}

	if in.inode != nil && in.device != nil {
		key := hardLinkKey{device: *in.device, inode: *in.inode}
		if hash, seen := o.hardLinks[key]; seen {
			in.hash = &hash
			o.pushUpsert(in.toFileRecord())
			o.stats.addHashed()
			return
		}
		hash, hashErr := hashutil.Hash(path)
		if hashErr != nil {
			o.recordHashFailure(in)
			return
		}
		o.hardLinks[key] = hash
		in.hash = &hash
		o.pushUpsert(in.toFileRecord())
		o.stats.addHashed()
		o.stats.addBytesHashed(size)
		return
	}

	hash, hashErr := hashutil.Hash(path)
	if hashErr != nil {
		o.recordHashFailure(in)
		return
	}
	in.hash = &hash
	o.pushUpsert(in.toFileRecord())
	o.stats.addHashed()
	o.stats.addBytesHashed(size)
}

func (o *Orchestrator) recordHashFailure(in recordInput) {
	in.skippedReason = protocol.SkippedPermissionError
	o.pushUpsert(in.toFileRecord())
	o.errLog.record(o.scanStart, o.host, o.Config.Root, in.norm.PathDisplay)
	o.stats.addError()
	o.stats.addSkipped()
}

// skipReason applies the Phase 2 step 4 predicate order: sparse,
// macos_dataless, windows_cloud_placeholder, volatile_active,
// recently_modified. The first predicate that matches wins.
func (o *Orchestrator) skipReason(path, ext string, info fs.FileInfo) (protocol.SkippedReason, bool) {
	if exclude.SparseFile(info) {
		return protocol.SkippedSparseFile, true
	}
	if exclude.MacOSDataless(info) {
		return protocol.SkippedMacOSDataless, true
	}
	if exclude.WindowsCloudPlaceholder(path) {
		return protocol.SkippedWindowsCloudPlaceholder, true
	}
	if exclude.VolatileActive(path, ext, info.ModTime(), o.source, o.Config.VolatileThresholdDays, time.Now()) {
		return protocol.SkippedVolatileActive, true
	}
	if time.Since(info.ModTime()) < recentlyModifiedWindow {
		return protocol.SkippedRecentlyModified, true
	}
	return protocol.SkippedNone, false
}
