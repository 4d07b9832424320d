// Command siftd is the sift inventory service: it opens the embedded
// store and serves the Ingest, Query, and Trim HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/sift-inventory/sift/internal/config"
	"github.com/sift-inventory/sift/internal/server"
	"github.com/sift-inventory/sift/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file (default ~/.sift.config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "siftd: load config: %v\n", err)
		os.Exit(1)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer st.Close()

	srv := server.New(server.Config{
		Port:          cfg.Server.Port,
		OTLPEndpoint:  cfg.Server.OTLPEndpoint,
		StatsCacheTTL: cfg.Server.StatsCacheTTL,
	}, st, logrus.NewEntry(log))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	log.WithField("port", cfg.Server.Port).WithField("db_path", cfg.Server.DBPath).Info("siftd listening")
	if err := srv.Start(ctx); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
