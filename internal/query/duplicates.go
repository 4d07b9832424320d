package query

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/sift-inventory/sift/internal/protocol"
)

// DuplicateSets implements GET /stats/duplicates: the top duplicate
// hash groups ranked by wasted bytes (copies-1)*size, optionally scoped
// to a single host and a minimum file size.
func (e *Engine) DuplicateSets(ctx context.Context, host string, minSize int64, limit int) ([]protocol.DuplicateSet, error) {
	if limit <= 0 {
		limit = 50
	}
	db := e.store.DB()

	where, args := []string{"hash IS NOT NULL", "size_bytes >= ?"}, []any{minSize}
	if host != "" {
		where = append(where, "host = ?")
		args = append(args, host)
	}

	hl, err := hardLinkedInodesScoped(ctx, db, host)
	if err != nil {
		return nil, fmt.Errorf("hard-linked inodes: %w", err)
	}

	whereClause := joinAnd(where)
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT hash, size_bytes, host, path_display, inode, device
		FROM files WHERE %s
	`, whereClause), args...)
	if err != nil {
		return nil, fmt.Errorf("duplicate rows: %w", err)
	}
	defer rows.Close()

	type bucket struct {
		size      int64
		locations []protocol.DuplicateLocation
	}
	buckets := make(map[string]*bucket)
	var order []string

	for rows.Next() {
		var hash, rowHost, pathDisplay string
		var size int64
		var inode, device sql.NullInt64
		if err := rows.Scan(&hash, &size, &rowHost, &pathDisplay, &inode, &device); err != nil {
			return nil, err
		}
		if isHardLinkedScoped(hl, rowHost, device, inode) {
			continue
		}
		b, ok := buckets[hash]
		if !ok {
			b = &bucket{size: size}
			buckets[hash] = b
			order = append(order, hash)
		}
		b.locations = append(b.locations, protocol.DuplicateLocation{Host: rowHost, PathDisplay: pathDisplay})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sets := make([]protocol.DuplicateSet, 0, len(order))
	for _, hash := range order {
		b := buckets[hash]
		if len(b.locations) < 2 {
			continue
		}
		copies := len(b.locations)
		sets = append(sets, protocol.DuplicateSet{
			Hash:      hash,
			SizeBytes: b.size,
			Copies:    copies,
			Wasted:    int64(copies-1) * b.size,
			Locations: b.locations,
		})
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i].Wasted > sets[j].Wasted })
	if len(sets) > limit {
		sets = sets[:limit]
	}
	return sets, nil
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}
