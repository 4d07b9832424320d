package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/sift-inventory/sift/internal/protocol"
)

// SearchParams are the filters accepted by GET /files.
type SearchParams struct {
	Host          string
	PathPrefix    string
	PathContains  string
	Ext           string
	Category      string
	MinSize       *int64
	MaxSize       *int64
	HasDuplicates *bool
	Hash          string
	Name          string // case-sensitive glob
	IName         string // case-insensitive glob
	Limit         int
}

// Search implements GET /files: host/path/extension/category/size-range/
// hash/glob filtering plus the has_duplicates flag and cross-host
// indicator.
func (e *Engine) Search(ctx context.Context, p SearchParams) ([]protocol.FileEntry, error) {
	conditions := []string{"1=1"}
	var args []any

	if p.Host != "" {
		conditions = append(conditions, "f.host = ?")
		args = append(args, p.Host)
	}
	if p.PathPrefix != "" {
		prefix := strings.ToLower(strings.TrimRight(p.PathPrefix, "/"))
		conditions = append(conditions, "(f.path LIKE ? OR f.path = ?)")
		args = append(args, prefix+"/%", prefix)
	}
	if p.Ext != "" {
		conditions = append(conditions, "f.ext = ?")
		args = append(args, strings.ToLower(strings.TrimPrefix(p.Ext, ".")))
	}
	if p.Category != "" {
		conditions = append(conditions, "f.file_category = ?")
		args = append(args, p.Category)
	}
	if p.MinSize != nil {
		conditions = append(conditions, "f.size_bytes >= ?")
		args = append(args, *p.MinSize)
	}
	if p.MaxSize != nil {
		conditions = append(conditions, "f.size_bytes <= ?")
		args = append(args, *p.MaxSize)
	}
	if p.PathContains != "" {
		conditions = append(conditions, "f.path LIKE '%' || ? || '%'")
		args = append(args, strings.ToLower(p.PathContains))
	}
	if p.Hash != "" {
		h := strings.ToLower(p.Hash)
		if len(h) == 64 {
			conditions = append(conditions, "f.hash = ?")
			args = append(args, h)
		} else {
			conditions = append(conditions, "f.hash LIKE ? || '%'")
			args = append(args, h)
		}
	}
	if p.Name != "" {
		conditions = append(conditions, `f.filename LIKE ? ESCAPE '\'`)
		args = append(args, globToLike(p.Name))
	}
	if p.IName != "" {
		conditions = append(conditions, `LOWER(f.filename) LIKE LOWER(?) ESCAPE '\'`)
		args = append(args, globToLike(p.IName))
	}

	dupClause := ""
	if p.HasDuplicates != nil {
		if *p.HasDuplicates {
			dupClause = " AND f.hash IN (SELECT hash FROM files WHERE hash IS NOT NULL GROUP BY hash HAVING COUNT(*) > 1)"
		} else {
			dupClause = " AND (f.hash IS NULL OR f.hash NOT IN (SELECT hash FROM files WHERE hash IS NOT NULL GROUP BY hash HAVING COUNT(*) > 1))"
		}
	}

	limit := p.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT f.host, f.drive, f.path_display, f.filename, f.ext, f.file_category,
			f.size_bytes, f.hash, f.mtime
		FROM files f
		WHERE %s %s
		ORDER BY f.path_display
		LIMIT ?
	`, strings.Join(conditions, " AND "), dupClause)
	args = append(args, limit)

	db := e.store.DB()
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	var entries []protocol.FileEntry
	var hashes []string
	for rows.Next() {
		var f protocol.FileEntry
		var hash *string
		if err := rows.Scan(&f.Host, &f.Drive, &f.PathDisplay, &f.Filename, &f.Ext, &f.FileCategory,
			&f.SizeBytes, &hash, &f.Mtime); err != nil {
			return nil, err
		}
		f.Hash = hash
		if hash != nil {
			hashes = append(hashes, *hash)
		}
		entries = append(entries, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Cross-host indicator, one query per distinct hash in the result page
	// rather than a join against the whole table per row.
	for i := range entries {
		if entries[i].Hash == nil {
			continue
		}
		others, err := otherHostsForHashes(ctx, db, entries[i].Host, []string{*entries[i].Hash})
		if err != nil {
			return nil, err
		}
		entries[i].OtherHosts = others
		entries[i].HasDuplicates = len(others) > 0 || hasSameHostDuplicate(hashes, *entries[i].Hash, i)
	}

	return entries, nil
}

func hasSameHostDuplicate(hashes []string, h string, skip int) bool {
	for i, other := range hashes {
		if i != skip && other == h {
			return true
		}
	}
	return false
}
