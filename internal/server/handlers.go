package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sift-inventory/sift/internal/protocol"
	"github.com/sift-inventory/sift/internal/query"
	"github.com/sift-inventory/sift/internal/store"
)

// handleScanRuns implements POST /scan-runs and GET /scan-runs?host=.
func (s *Server) handleScanRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var create protocol.ScanRunCreate
		if err := decodeJSONBody(r, &create); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		id, err := s.Store.CreateScanRun(r.Context(), create)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		s.Refresher.Trigger(r.Context(), create.Host)
		respondJSON(w, http.StatusOK, protocol.ScanRunCreateResponse{ID: id})

	case http.MethodGet:
		host := r.URL.Query().Get("host")
		if host == "" {
			respondError(w, http.StatusBadRequest, errMissingParam("host"))
			return
		}
		runs, err := s.Store.ListScanRuns(r.Context(), host)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		out := make([]protocol.ScanRunEntry, len(runs))
		for i, run := range runs {
			out[i] = protocol.ScanRunEntry{
				ID:              run.ID,
				Host:            run.Host,
				RootPath:        run.RootPath,
				RootPathDisplay: run.RootPathDisplay,
				StartedAt:       run.StartedAt,
				Status:          protocol.ScanRunStatus(run.Status),
			}
		}
		respondJSON(w, http.StatusOK, out)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleScanRunByID implements PATCH /scan-runs/{id}.
func (s *Server) handleScanRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/scan-runs/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var patch protocol.ScanRunPatch
	if err := decodeJSONBody(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.Store.PatchScanRun(r.Context(), id, patch.Status); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	// A status patch means the run just ended one way or another: refresh
	// immediately rather than waiting on the normal per-host throttle. The
	// host comes from ?host= when given, else from the run's own row.
	host := r.URL.Query().Get("host")
	if host == "" {
		_ = s.Store.DB().QueryRowContext(r.Context(), `SELECT host FROM scan_runs WHERE id = ?`, id).Scan(&host)
	}
	if host != "" {
		if _, err := s.Store.RefreshHostStats(r.Context(), host, time.Now()); err != nil {
			s.log.WithError(err).Warn("immediate host-stats refresh on scan-run patch failed")
		}
	}

	respondJSON(w, http.StatusOK, protocol.OKResponse{OK: true})
}

// handleFilesSearch implements POST /files (upsert) and GET /files (search)
// on the same path.
func (s *Server) handleFilesSearch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var records []protocol.FileRecord
		if err := decodeJSONBody(r, &records); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		n, err := s.Store.UpsertFiles(r.Context(), records)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		s.Queries.Invalidate()
		if len(records) > 0 {
			s.Refresher.Trigger(r.Context(), records[0].Host)
		}
		respondJSON(w, http.StatusOK, protocol.UpsertResponse{Upserted: n})

	case http.MethodGet:
		p := parseSearchParams(r)
		results, err := s.Queries.Search(r.Context(), p)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, results)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func parseSearchParams(r *http.Request) query.SearchParams {
	q := r.URL.Query()
	p := query.SearchParams{
		Host:         q.Get("host"),
		PathPrefix:   q.Get("path_prefix"),
		PathContains: q.Get("path_contains"),
		Ext:          q.Get("ext"),
		Category:     q.Get("category"),
		Hash:         q.Get("hash"),
		Name:         q.Get("name"),
		IName:        q.Get("iname"),
	}
	if v := q.Get("min_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.MinSize = &n
		}
	}
	if v := q.Get("max_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			p.MaxSize = &n
		}
	}
	if v := q.Get("has_duplicates"); v != "" {
		b := v == "true" || v == "1"
		p.HasDuplicates = &b
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.Limit = n
		}
	}
	return p
}

// handleFilesSeen implements POST /files/seen.
func (s *Server) handleFilesSeen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.SeenRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	n, err := s.Store.MarkSeen(r.Context(), req.Host, req.LastSeenAt, req.Paths)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, protocol.SeenResponse{Updated: n})
}

// handleCacheStream implements GET /files/cache/stream, writing each row
// as a newline-delimited compact JSON array as it's read from the store
// rather than buffering the whole result set in memory.
func (s *Server) handleCacheStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	host := r.URL.Query().Get("host")
	root := r.URL.Query().Get("root")
	if host == "" {
		respondError(w, http.StatusBadRequest, errMissingParam("host"))
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	flusher, canFlush := w.(http.Flusher)

	err := s.Store.StreamCache(r.Context(), host, root, func(row store.CacheRow) error {
		if err := enc.Encode(protocol.CacheEntry{Path: row.Path, Mtime: row.Mtime, Size: row.Size}); err != nil {
			return err
		}
		if canFlush {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).Warn("cache stream failed mid-stream")
	}
}

// handleLs implements GET /files/ls.
func (s *Server) handleLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	host := q.Get("host")
	path := q.Get("path")
	if host == "" {
		respondError(w, http.StatusBadRequest, errMissingParam("host"))
		return
	}
	depth := 1
	if v := q.Get("depth"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			depth = n
		}
	}
	var minSize int64
	if v := q.Get("min_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			minSize = n
		}
	}

	entries, err := s.Queries.Ls(r.Context(), host, path, depth, minSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// handleLsDupHash implements GET /files/ls/dup-hash.
func (s *Server) handleLsDupHash(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	host := r.URL.Query().Get("host")
	path := r.URL.Query().Get("path")
	if host == "" {
		respondError(w, http.StatusBadRequest, errMissingParam("host"))
		return
	}

	hash, ok, err := s.Queries.FirstDuplicateHash(r.Context(), host, path)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"hash": hash})
}

// handleStatsOverview implements GET /stats/overview.
func (s *Server) handleStatsOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	var hosts, categories []string
	if v := q.Get("hosts"); v != "" {
		hosts = strings.Split(v, ",")
	}
	if v := q.Get("categories"); v != "" {
		categories = strings.Split(v, ",")
	}
	var minSize int64
	if v := q.Get("min_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			minSize = n
		}
	}

	overview, err := s.Queries.Overview(r.Context(), hosts, categories, minSize)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// handleStatsDuplicates implements GET /stats/duplicates.
func (s *Server) handleStatsDuplicates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	host := q.Get("host")
	var minSize int64
	if v := q.Get("min_size"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			minSize = n
		}
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	sets, err := s.Queries.DuplicateSets(r.Context(), host, minSize, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, sets)
}

// handleHosts implements GET /hosts.
func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	hosts, err := s.Queries.Hosts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, hosts)
}

// handleDirectories implements GET /directories.
func (s *Server) handleDirectories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	host := r.URL.Query().Get("host")
	prefix := r.URL.Query().Get("prefix")
	if host == "" {
		respondError(w, http.StatusBadRequest, errMissingParam("host"))
		return
	}

	dirs, err := s.Queries.Directories(r.Context(), host, prefix)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, dirs)
}

// handleInit implements GET /init: hosts plus a best-effort root listing
// for the detected client host, saving the interactive CLI a round trip
// on startup.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hosts, err := s.Queries.Hosts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	resp := protocol.InitResponse{Hosts: hosts, DetectedHost: r.URL.Query().Get("hostname")}

	for _, h := range hosts {
		if h.Host == resp.DetectedHost {
			if listing, err := s.Queries.Ls(r.Context(), resp.DetectedHost, "/", 1, 0); err == nil {
				resp.RootListing = listing
			}
			break
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// handleTrim implements POST /trim.
func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req protocol.TrimRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.Trimmer.Trim(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
