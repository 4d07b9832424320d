// Package trim implements bulk deletion of inventory rows by scope, glob
// pattern, and "stale relative to covering scan".
package trim

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sift-inventory/sift/internal/protocol"
	"github.com/sift-inventory/sift/internal/query"
	"github.com/sift-inventory/sift/internal/statsrefresh"
	"github.com/sift-inventory/sift/internal/store"
)

// Engine executes trim requests against the store.
type Engine struct {
	store     *store.Store
	queries   *query.Engine
	refresher *statsrefresh.Refresher
	log       *logrus.Entry
}

// New builds a trim Engine. refresher may be nil, in which case trims
// skip the host-stats refresh trigger (used by tests).
func New(s *store.Store, q *query.Engine, refresher *statsrefresh.Refresher, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Engine{store: s, queries: q, refresher: refresher, log: log.WithField("component", "trim")}
}

// Trim implements POST /trim.
func (e *Engine) Trim(ctx context.Context, req protocol.TrimRequest) (protocol.TrimResponse, error) {
	where, args, err := e.buildWhere(ctx, req)
	if err != nil {
		return protocol.TrimResponse{}, err
	}

	db := e.store.DB()

	if req.CountOnly {
		var n int
		row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM files WHERE %s`, where), args...)
		if err := row.Scan(&n); err != nil {
			return protocol.TrimResponse{}, fmt.Errorf("count matched: %w", err)
		}
		return protocol.TrimResponse{Matched: n}, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT rowid, path_display FROM files WHERE %s
		ORDER BY rowid LIMIT ? OFFSET ?
	`, where), append(append([]any{}, args...), limit, req.Offset)...)
	if err != nil {
		return protocol.TrimResponse{}, fmt.Errorf("select page: %w", err)
	}
	var rowids []int64
	var paths []string
	for rows.Next() {
		var rowid int64
		var p string
		if err := rows.Scan(&rowid, &p); err != nil {
			rows.Close()
			return protocol.TrimResponse{}, err
		}
		rowids = append(rowids, rowid)
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return protocol.TrimResponse{}, err
	}
	rows.Close()

	resp := protocol.TrimResponse{Matched: len(rowids)}
	if req.Preview {
		resp.PreviewPaths = paths
		return resp, nil
	}
	if len(rowids) == 0 {
		return resp, nil
	}

	n, err := e.store.DeleteByRowIDs(ctx, rowids)
	if err != nil {
		return protocol.TrimResponse{}, fmt.Errorf("delete: %w", err)
	}
	resp.Deleted = n

	if e.queries != nil {
		e.queries.Invalidate()
	}
	if e.refresher != nil && req.Host != "" {
		e.refresher.Trigger(ctx, req.Host)
	}
	e.log.WithFields(logrus.Fields{"host": req.Host, "deleted": n}).Info("trim deleted rows")

	return resp, nil
}

// buildWhere translates a TrimRequest's scope, deleted-only mode, and
// glob patterns into a parameterized SQL WHERE clause.
func (e *Engine) buildWhere(ctx context.Context, req protocol.TrimRequest) (string, []any, error) {
	conditions := []string{"host = ?"}
	args := []any{req.Host}

	prefix := strings.ToLower(strings.TrimRight(req.PathPrefix, "/"))
	switch {
	case req.Recursive:
		if prefix == "" {
			// recursive over the whole host: no further path constraint
		} else {
			conditions = append(conditions, "(path = ? OR path LIKE ? || '/%')")
			args = append(args, prefix, prefix)
		}
	case prefix == "":
		conditions = append(conditions, "path LIKE '/%' AND path NOT LIKE '/%/%'")
	default:
		conditions = append(conditions, "path LIKE ? || '/%' AND path NOT LIKE ? || '/%/%'")
		args = append(args, prefix, prefix)
	}

	if len(req.Patterns) > 0 {
		var globClauses []string
		for _, pat := range req.Patterns {
			globClauses = append(globClauses, `filename LIKE ? ESCAPE '\'`)
			args = append(args, query.GlobToLike(pat))
		}
		conditions = append(conditions, "("+strings.Join(globClauses, " OR ")+")")
	}

	if req.DeletedOnly {
		run, ok, err := e.store.CoveringCompleteRun(ctx, req.Host, prefix)
		if err != nil {
			return "", nil, fmt.Errorf("covering complete run: %w", err)
		}
		if !ok {
			// Absence of proof is not proof of absence: no covering
			// complete run means nothing qualifies as deleted-only.
			return "1=0", nil, nil
		}
		conditions = append(conditions, "last_seen_at < ?")
		args = append(args, run.StartedAt)
	}

	return strings.Join(conditions, " AND "), args, nil
}
