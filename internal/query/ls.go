// Package query implements the directory-listing aggregation, file search,
// duplicate rollup, host summary, and stats overview reads against the
// inventory store.
//
// SQLite has no SPLIT_PART/ANY_VALUE/STRING_AGG/BOOL_OR equivalents, so
// the directory-listing aggregation fetches the scoped row set once and
// performs the segment grouping and aggregate computation in Go rather
// than as a single five-way CTE join.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sift-inventory/sift/internal/protocol"
	"github.com/sift-inventory/sift/internal/store"
)

// Engine answers read queries over the inventory store.
type Engine struct {
	store *store.Store
	cache *statsCache
}

// New builds a query Engine with a stats-overview cache of the given TTL.
func New(s *store.Store, ttl time.Duration) *Engine {
	return &Engine{store: s, cache: newStatsCache(ttl)}
}

// Invalidate drops the stats-overview cache; callers invoke this after
// upserts and trims of the files table.
func (e *Engine) Invalidate() {
	e.cache.Invalidate()
}

type fileRow struct {
	path, pathDisplay, filename, hash, fileCategory, host, drive string
	sizeBytes                                                    sql.NullInt64
	mtime                                                        sql.NullInt64
	inode, device                                                sql.NullInt64
}

// hardLinkedInodes returns the (device, inode) pairs appearing on more than
// one path for host: physical files that should be counted once, not once
// per directory entry.
func hardLinkedInodes(ctx context.Context, db *sql.DB, host string) (map[[2]int64]struct{}, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT device, inode FROM files
		WHERE host = ? AND inode IS NOT NULL AND device IS NOT NULL
		GROUP BY device, inode HAVING COUNT(*) > 1
	`, host)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[[2]int64]struct{})
	for rows.Next() {
		var dev, ino int64
		if err := rows.Scan(&dev, &ino); err != nil {
			return nil, err
		}
		set[[2]int64{dev, ino}] = struct{}{}
	}
	return set, rows.Err()
}

// hardLinkedInodesScoped is hardLinkedInodes optionally spanning every
// host (host == ""), for duplicate-rollup queries. Device/inode numbers
// are only comparable within a single host's filesystem namespace, so the
// key always includes host to avoid treating coincidentally-equal numbers
// on two different machines as the same physical file.
func hardLinkedInodesScoped(ctx context.Context, db *sql.DB, host string) (map[string]struct{}, error) {
	query := `SELECT host, device, inode FROM files WHERE inode IS NOT NULL AND device IS NOT NULL`
	args := []any{}
	if host != "" {
		query += ` AND host = ?`
		args = append(args, host)
	}
	query += ` GROUP BY host, device, inode HAVING COUNT(*) > 1`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var rowHost string
		var dev, ino int64
		if err := rows.Scan(&rowHost, &dev, &ino); err != nil {
			return nil, err
		}
		set[hardLinkKey(rowHost, dev, ino)] = struct{}{}
	}
	return set, rows.Err()
}

func hardLinkKey(host string, device, inode int64) string {
	return fmt.Sprintf("%s|%d|%d", host, device, inode)
}

func isHardLinkedScoped(hl map[string]struct{}, host string, device, inode sql.NullInt64) bool {
	if !device.Valid || !inode.Valid {
		return false
	}
	_, ok := hl[hardLinkKey(host, device.Int64, inode.Int64)]
	return ok
}

func isHardLinked(hl map[[2]int64]struct{}, device, inode sql.NullInt64) bool {
	if !device.Valid || !inode.Valid {
		return false
	}
	_, ok := hl[[2]int64{device.Int64, inode.Int64}]
	return ok
}

// dupeHashes returns the set of hashes appearing on >= 2 non-hard-linked
// files for host with size_bytes >= minSize.
func dupeHashes(ctx context.Context, db *sql.DB, host string, minSize int64, hl map[[2]int64]struct{}) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT hash, device, inode FROM files
		WHERE host = ? AND hash IS NOT NULL AND size_bytes >= ?
	`, host, minSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var hash string
		var dev, ino sql.NullInt64
		if err := rows.Scan(&hash, &dev, &ino); err != nil {
			return nil, err
		}
		if isHardLinked(hl, dev, ino) {
			continue
		}
		counts[hash]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	dupes := make(map[string]struct{})
	for hash, n := range counts {
		if n > 1 {
			dupes[hash] = struct{}{}
		}
	}
	return dupes, nil
}

// splitIdx computes the 1-indexed path-component slot depth applies to:
// paths are '/'-prefixed, so component 1 is always empty; prefix's own trailing
// components consume (count of '/' in prefix) + 1 slots, and depth walks
// that many further components beyond the prefix.
func splitIdx(prefix string, depth int) int {
	return strings.Count(prefix, "/") + depth + 1
}

// splitPart returns the n-th (1-indexed) '/'-separated component of p, or
// "" if p has fewer components.
func splitPart(p string, n int) string {
	parts := strings.Split(p, "/")
	if n < 1 || n > len(parts) {
		return ""
	}
	return parts[n-1]
}

// Ls returns the directory-listing aggregation for (host, path) at the
// given depth and min_size filter.
func (e *Engine) Ls(ctx context.Context, host, path string, depth int, minSize int64) ([]protocol.LsEntry, error) {
	db := e.store.DB()
	prefix := strings.ToLower(strings.TrimRight(path, "/"))
	idx := splitIdx(prefix, depth)

	hl, err := hardLinkedInodes(ctx, db, host)
	if err != nil {
		return nil, fmt.Errorf("hard-linked inodes: %w", err)
	}
	dupes, err := dupeHashes(ctx, db, host, minSize, hl)
	if err != nil {
		return nil, fmt.Errorf("dupe hashes: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT path, path_display, filename, COALESCE(hash,''), COALESCE(file_category,''),
			COALESCE(size_bytes,0) AS size_bytes, COALESCE(mtime,0) AS mtime,
			inode, device
		FROM files WHERE host = ? AND (path = ? OR path LIKE ? || '/%')
	`, host, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("scoped rows: %w", err)
	}
	defer rows.Close()

	type group struct {
		segment, segmentDisplay, entryType string
		fileCount, totalBytes              int64
		dupCount                           int64
		dupHashes                          map[string]struct{}
		leafFilename, leafHash, leafCat    string
		leafPathDisplay                    string
		leafSize, leafMtime                int64
		hasLeaf                            bool
		isHardLinked                       bool
		hashesInGroup                      []string
	}
	groups := make(map[string]*group)
	var order []string

	for rows.Next() {
		var r fileRow
		var size, mtime int64
		if err := rows.Scan(&r.path, &r.pathDisplay, &r.filename, &r.hash, &r.fileCategory,
			&size, &mtime, &r.inode, &r.device); err != nil {
			return nil, err
		}

		segment := splitPart(r.path, idx)
		if segment == "" {
			continue
		}
		segmentDisplay := splitPart(r.pathDisplay, idx)
		entryType := "dir"
		if splitPart(r.path, idx+1) == "" {
			entryType = "file"
		}

		g, ok := groups[segment]
		if !ok {
			g = &group{segment: segment, segmentDisplay: segmentDisplay, entryType: entryType, dupHashes: map[string]struct{}{}}
			groups[segment] = g
			order = append(order, segment)
		}
		g.fileCount++
		g.totalBytes += size
		if _, isDupe := dupes[r.hash]; isDupe && r.hash != "" {
			g.dupCount++
			g.dupHashes[r.hash] = struct{}{}
			g.hashesInGroup = append(g.hashesInGroup, r.hash)
		}
		if entryType == "file" {
			g.hasLeaf = true
			g.leafFilename, g.leafHash, g.leafCat, g.leafPathDisplay = r.filename, r.hash, r.fileCategory, r.pathDisplay
			g.leafSize, g.leafMtime = size, mtime
			if isHardLinked(hl, r.device, r.inode) {
				g.isHardLinked = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(order, func(i, j int) bool {
		gi, gj := groups[order[i]], groups[order[j]]
		if gi.entryType != gj.entryType {
			return gi.entryType < gj.entryType // "dir" < "file"
		}
		return order[i] < order[j]
	})

	entries := make([]protocol.LsEntry, 0, len(order))
	for _, seg := range order {
		g := groups[seg]

		otherHosts, err := otherHostsForHashes(ctx, db, host, g.hashesInGroup)
		if err != nil {
			return nil, err
		}

		entry := protocol.LsEntry{
			Segment:      g.segment,
			EntryType:    g.entryType,
			FileCount:    g.fileCount,
			TotalBytes:   g.totalBytes,
			DupCount:     g.dupCount,
			DupHashCount: int64(len(g.dupHashes)),
			PathDisplay:  g.segmentDisplay,
			OtherHosts:   otherHosts,
			IsHardLinked: g.isHardLinked,
		}
		if g.hasLeaf {
			entry.Filename = g.leafFilename
			size := g.leafSize
			entry.SizeBytes = &size
			if g.leafHash != "" {
				hash := g.leafHash
				entry.Hash = &hash
			}
			mtime := g.leafMtime
			entry.Mtime = &mtime
			entry.FileCategory = g.leafCat
			entry.PathDisplay = g.leafPathDisplay
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func otherHostsForHashes(ctx context.Context, db *sql.DB, host string, hashes []string) ([]string, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	seen := map[string]struct{}{}
	placeholders := make([]string, len(hashes))
	args := make([]any, 0, len(hashes)+1)
	args = append(args, host)
	for i, h := range hashes {
		placeholders[i] = "?"
		args = append(args, h)
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT DISTINCT host FROM files WHERE host != ? AND hash IN (%s) ORDER BY host
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			out = append(out, h)
		}
	}
	return out, rows.Err()
}

// FirstDuplicateHash returns the first same-host duplicate hash found under
// path for host, or ok=false when none exists (the HTTP handler turns that
// into a 404).
func (e *Engine) FirstDuplicateHash(ctx context.Context, host, path string) (hash string, ok bool, err error) {
	db := e.store.DB()
	prefix := strings.ToLower(strings.TrimRight(path, "/"))

	hl, err := hardLinkedInodes(ctx, db, host)
	if err != nil {
		return "", false, err
	}
	dupes, err := dupeHashes(ctx, db, host, 0, hl)
	if err != nil {
		return "", false, err
	}
	if len(dupes) == 0 {
		return "", false, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT hash, device, inode FROM files
		WHERE host = ? AND hash IS NOT NULL AND (path = ? OR path LIKE ? || '/%')
	`, host, prefix, prefix)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		var dev, ino sql.NullInt64
		if err := rows.Scan(&h, &dev, &ino); err != nil {
			return "", false, err
		}
		if isHardLinked(hl, dev, ino) {
			continue
		}
		if _, isDupe := dupes[h]; isDupe {
			return h, true, nil
		}
	}
	return "", false, rows.Err()
}
