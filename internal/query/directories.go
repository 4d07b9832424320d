package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Directories implements GET /directories: distinct immediate child
// directory segments under prefix for host, for shell-style path
// autocomplete. It reuses the same split-index arithmetic as Ls but only
// needs the segment set, not the full aggregation.
func (e *Engine) Directories(ctx context.Context, host, prefix string) ([]string, error) {
	db := e.store.DB()
	norm := strings.ToLower(strings.TrimRight(prefix, "/"))
	idx := splitIdx(norm, 1)

	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT path_display FROM files
		WHERE host = ? AND (path = ? OR path LIKE ? || '/%')
	`, host, norm, norm)
	if err != nil {
		return nil, fmt.Errorf("directory rows: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	for rows.Next() {
		var pathDisplay string
		if err := rows.Scan(&pathDisplay); err != nil {
			return nil, err
		}
		segment := splitPart(pathDisplay, idx)
		if segment == "" {
			continue
		}
		// Only directories: a row whose path continues past idx+1 proves
		// segment is itself a directory, not a leaf filename.
		if splitPart(strings.ToLower(pathDisplay), idx+1) == "" {
			continue
		}
		seen[segment] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}
