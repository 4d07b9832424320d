package scanner

import (
	"time"

	"github.com/sift-inventory/sift/internal/classify"
	"github.com/sift-inventory/sift/internal/pathnorm"
	"github.com/sift-inventory/sift/internal/protocol"
)

// recordInput carries everything dispatch needs to build an upsert row,
// kept as a struct because the call sites (cache hit, skip predicates,
// hard-link reuse, hash success/failure) each fill in a different subset.
type recordInput struct {
	host          string
	norm          pathnorm.Normalized
	filename      string
	ext           string
	category      classify.Category
	size          int64
	hash          *string
	mtime         int64
	skippedReason protocol.SkippedReason
	inode         *uint64
	device        *uint64
	sourceOS      pathnorm.SourceOS
	checkedAt     time.Time
}

func (in recordInput) toFileRecord() protocol.FileRecord {
	return protocol.FileRecord{
		Host:          in.host,
		Drive:         in.norm.Drive,
		Path:          in.norm.Path,
		PathDisplay:   in.norm.PathDisplay,
		Filename:      in.filename,
		Ext:           in.ext,
		FileCategory:  protocol.FileCategory(in.category),
		SizeBytes:     &in.size,
		Hash:          in.hash,
		Mtime:         in.mtime,
		LastChecked:   in.checkedAt,
		LastSeenAt:    in.checkedAt,
		SourceOS:      string(in.sourceOS),
		SkippedReason: in.skippedReason,
		Inode:         in.inode,
		Device:        in.device,
	}
}
