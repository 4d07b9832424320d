// Package server is the Ingest/Query/Trim HTTP API: the single process
// every sift agent and CLI invocation talks to, wrapping internal/store,
// internal/query, internal/trim, and internal/statsrefresh behind a plain
// http.ServeMux and a *http.Server with fixed timeouts.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sift-inventory/sift/internal/query"
	"github.com/sift-inventory/sift/internal/statsrefresh"
	"github.com/sift-inventory/sift/internal/store"
	"github.com/sift-inventory/sift/internal/trim"
)

// Config is the subset of the [server] config section this package needs.
type Config struct {
	Port          int
	OTLPEndpoint  string
	StatsCacheTTL time.Duration
}

// Server wires the store and query/trim engines behind HTTP handlers.
type Server struct {
	Config    Config
	Store     *store.Store
	Queries   *query.Engine
	Trimmer   *trim.Engine
	Refresher *statsrefresh.Refresher
	Router    *http.ServeMux
	log       *logrus.Entry
}

// New builds a Server and registers its routes.
func New(cfg Config, st *store.Store, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "server")

	refresher := statsrefresh.New(st, log)
	queries := query.New(st, cfg.StatsCacheTTL)
	s := &Server{
		Config:    cfg,
		Store:     st,
		Queries:   queries,
		Trimmer:   trim.New(st, queries, refresher, log),
		Refresher: refresher,
		Router:    http.NewServeMux(),
		log:       log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.HandleFunc("/scan-runs", s.handleScanRuns)
	s.Router.HandleFunc("/scan-runs/", s.handleScanRunByID)
	s.Router.HandleFunc("/files", s.handleFilesSearch)
	s.Router.HandleFunc("/files/seen", s.handleFilesSeen)
	s.Router.HandleFunc("/files/cache/stream", s.handleCacheStream)
	s.Router.HandleFunc("/files/ls", s.handleLs)
	s.Router.HandleFunc("/files/ls/dup-hash", s.handleLsDupHash)
	s.Router.HandleFunc("/stats/overview", s.handleStatsOverview)
	s.Router.HandleFunc("/stats/duplicates", s.handleStatsDuplicates)
	s.Router.HandleFunc("/hosts", s.handleHosts)
	s.Router.HandleFunc("/directories", s.handleDirectories)
	s.Router.HandleFunc("/init", s.handleInit)
	s.Router.HandleFunc("/trim", s.handleTrim)
}

// Handler returns the fully wrapped HTTP handler: request-id tagging,
// structured access logging, and an otelhttp tracing span around the mux.
// Separated from Start so tests can exercise it with httptest without
// binding a real port.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.Router
	h = s.withLogging(h)
	h = s.withRequestID(h)
	return otelhttp.NewHandler(h, "sift.server")
}

// Start binds the configured port and serves until the context is done or
// ListenAndServe returns.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Config.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
