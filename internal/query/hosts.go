package query

import (
	"context"
	"fmt"

	"github.com/sift-inventory/sift/internal/protocol"
)

// Hosts implements GET /hosts: one summary row per host that has ever
// reported a scan run, joining its most recent scan run against its
// current files-table totals.
func (e *Engine) Hosts(ctx context.Context) ([]protocol.HostEntry, error) {
	db := e.store.DB()

	rows, err := db.QueryContext(ctx, `
		SELECT sr.host, sr.root_path, sr.started_at
		FROM scan_runs sr
		JOIN (
			SELECT host, MAX(started_at) AS max_started_at
			FROM scan_runs
			GROUP BY host
		) latest ON latest.host = sr.host AND latest.max_started_at = sr.started_at
	`)
	if err != nil {
		return nil, fmt.Errorf("latest scan runs: %w", err)
	}
	defer rows.Close()

	var entries []protocol.HostEntry
	for rows.Next() {
		var h protocol.HostEntry
		if err := rows.Scan(&h.Host, &h.LastScanRoot, &h.LastScanAt); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		hs, ok, err := e.store.GetHostStats(ctx, entries[i].Host)
		if err != nil {
			return nil, fmt.Errorf("host stats for %s: %w", entries[i].Host, err)
		}
		if ok {
			entries[i].TotalFiles, entries[i].TotalBytes, entries[i].TotalHashed = hs.TotalFiles, hs.TotalBytes, hs.TotalHashed
			continue
		}
		// No rollup yet (e.g. scan still in its first pass): fall back to a
		// live aggregation rather than reporting zeroes.
		row := db.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(size_bytes), 0), COUNT(hash)
			FROM files WHERE host = ?
		`, entries[i].Host)
		if err := row.Scan(&entries[i].TotalFiles, &entries[i].TotalBytes, &entries[i].TotalHashed); err != nil {
			return nil, fmt.Errorf("host totals for %s: %w", entries[i].Host, err)
		}
	}

	return entries, nil
}
