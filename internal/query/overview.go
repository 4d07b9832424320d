package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/sync/singleflight"

	"github.com/sift-inventory/sift/internal/protocol"
)

// statsCache memoizes the expensive /stats/overview aggregation, keyed by
// its filter parameters, for a short TTL. It is invalidated on every write
// (Invalidate), and collapses concurrent identical queries with
// singleflight so a cache-miss stampede issues one aggregation, not N.
type statsCache struct {
	ttl   time.Duration
	mu    sync.Mutex
	entry map[string]cacheEntry
	group singleflight.Group
}

type cacheEntry struct {
	value   protocol.StatsOverview
	expires time.Time
}

func newStatsCache(ttl time.Duration) *statsCache {
	return &statsCache{ttl: ttl, entry: make(map[string]cacheEntry)}
}

func (c *statsCache) key(hosts, categories []string, minSize int64) string {
	return fmt.Sprintf("%d|%s|%s", minSize, strings.Join(hosts, ","), strings.Join(categories, ","))
}

// Invalidate drops every cached overview. Called after every upsert and
// trim of the files table so a stale duplicate count never outlives the
// data it summarizes beyond the TTL window.
func (c *statsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	maps.Clear(c.entry)
}

func (c *statsCache) get(key string) (protocol.StatsOverview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entry[key]
	if !ok || time.Now().After(e.expires) {
		return protocol.StatsOverview{}, false
	}
	return e.value, true
}

func (c *statsCache) put(key string, v protocol.StatsOverview) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry[key] = cacheEntry{value: v, expires: time.Now().Add(c.ttl)}
}

// Overview computes (or returns the memoized) totals, optionally filtered
// by host and category.
func (e *Engine) Overview(ctx context.Context, hosts, categories []string, minSize int64) (protocol.StatsOverview, error) {
	key := e.cache.key(hosts, categories, minSize)
	if v, ok := e.cache.get(key); ok {
		return v, nil
	}

	v, err, _ := e.cache.group.Do(key, func() (any, error) {
		result, err := e.computeOverview(ctx, hosts, categories, minSize)
		if err != nil {
			return protocol.StatsOverview{}, err
		}
		e.cache.put(key, result)
		return result, nil
	})
	if err != nil {
		return protocol.StatsOverview{}, err
	}
	return v.(protocol.StatsOverview), nil
}

func (e *Engine) computeOverview(ctx context.Context, hosts, categories []string, minSize int64) (protocol.StatsOverview, error) {
	db := e.store.DB()

	where, args := []string{"size_bytes >= ?"}, []any{minSize}
	if len(hosts) > 0 {
		ph := make([]string, len(hosts))
		for i, h := range hosts {
			ph[i] = "?"
			args = append(args, h)
		}
		where = append(where, fmt.Sprintf("host IN (%s)", strings.Join(ph, ",")))
	}
	if len(categories) > 0 {
		ph := make([]string, len(categories))
		for i, c := range categories {
			ph[i] = "?"
			args = append(args, c)
		}
		where = append(where, fmt.Sprintf("file_category IN (%s)", strings.Join(ph, ",")))
	}
	whereClause := strings.Join(where, " AND ")

	var out protocol.StatsOverview
	row := db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(size_bytes),0), COUNT(hash)
		FROM files WHERE %s
	`, whereClause), args...)
	if err := row.Scan(&out.TotalFiles, &out.TotalBytes, &out.TotalHashed); err != nil {
		return out, fmt.Errorf("overview totals: %w", err)
	}

	out.ByCategory = make(map[string]int64)
	catRows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT file_category, COUNT(*) FROM files WHERE %s GROUP BY file_category
	`, whereClause), args...)
	if err != nil {
		return out, fmt.Errorf("overview by category: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var cat string
		var n int64
		if err := catRows.Scan(&cat, &n); err != nil {
			return out, err
		}
		out.ByCategory[cat] = n
	}
	if err := catRows.Err(); err != nil {
		return out, err
	}

	sets, wasted, err := duplicateTotals(ctx, db, whereClause, args)
	if err != nil {
		return out, err
	}
	out.DuplicateSets = sets
	out.WastedBytes = wasted
	return out, nil
}

func duplicateTotals(ctx context.Context, db *sql.DB, whereClause string, args []any) (sets, wasted int64, err error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT size_bytes, COUNT(*) FROM files
		WHERE %s AND hash IS NOT NULL
		GROUP BY hash, size_bytes HAVING COUNT(*) > 1
	`, whereClause), args...)
	if err != nil {
		return 0, 0, fmt.Errorf("duplicate totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var size, copies int64
		if err := rows.Scan(&size, &copies); err != nil {
			return 0, 0, err
		}
		sets++
		wasted += (copies - 1) * size
	}
	return sets, wasted, rows.Err()
}
