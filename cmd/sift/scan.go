package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sift-inventory/sift/internal/ingestclient"
	"github.com/sift-inventory/sift/internal/progress"
	"github.com/sift-inventory/sift/internal/scanner"
)

var (
	scanHost                  string
	scanOneFilesystem         bool
	scanYolo                  bool
	scanVolatileThresholdDays int
	scanQuiet                 bool
	scanAsk                   bool
	scanDebug                 bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Walk a directory tree and report its contents to the inventory service",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		root, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			root = resolved
		}
		if _, err := os.Stat(root); err != nil {
			return fmt.Errorf("scan root: %w", err)
		}

		host := scanHost
		if host == "" {
			host = cfg.Agent.Host
		}
		if host == "" {
			host, _ = os.Hostname()
		}

		if scanAsk && !confirm(fmt.Sprintf("Scan %s as host %q against %s? [y/N] ", root, host, cfg.CLI.Server)) {
			fmt.Println("aborted")
			return nil
		}

		client := ingestclient.New(cfg.CLI.Server)
		client.OnWarn(func(err error) {
			fmt.Fprintf(os.Stderr, "sift: warning: %v\n", err)
		})

		var reporter *progress.Reporter
		if !scanQuiet {
			reporter = progress.New(os.Stderr, time.Now())
		}

		volatileDays := scanVolatileThresholdDays
		if volatileDays == 0 {
			volatileDays = cfg.Agent.VolatileThresholdDays
		}

		orch := scanner.New(scanner.Config{
			Root:                  root,
			Host:                  host,
			OneFilesystem:         scanOneFilesystem,
			AllowUnraidRawDisk:    scanYolo,
			VolatileThresholdDays: volatileDays,
			Quiet:                 scanQuiet,
			Debug:                 scanDebug,
		}, client, reporter)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Fprintln(os.Stderr, "\nsift: interrupt received, finishing up (press again to force quit)")
			cancel()
			<-sigCh
			os.Exit(130)
		}()
		defer signal.Stop(sigCh)

		res, runErr := orch.Run(ctx)
		printScanResult(res)
		if runErr != nil && runErr != scanner.ErrInterrupted {
			return runErr
		}
		return nil
	},
}

func printScanResult(res scanner.Result) {
	fmt.Printf("\nScanned %d files (%d hashed, %d cached, %d skipped, %d errors) in %s\n",
		res.FilesScanned, res.FilesHashed, res.FilesCached, res.FilesSkipped, res.ReadErrors, res.Elapsed.Round(time.Second))
	if res.ErrorLogPath != "" {
		fmt.Printf("errors logged to %s\n", res.ErrorLogPath)
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanHost, "host", "", "host identity to report under (default from config or hostname)")
	scanCmd.Flags().BoolVarP(&scanOneFilesystem, "one-filesystem", "x", false, "don't cross filesystem/mount boundaries (skips mount points)")
	scanCmd.Flags().BoolVar(&scanYolo, "yolo", false, "scan Unraid's raw /mnt/diskN shares too")
	scanCmd.Flags().IntVar(&scanVolatileThresholdDays, "volatile-threshold-days", 0, "override the volatile-file age threshold (default from config)")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "suppress progress output (still prints the final summary)")
	scanCmd.Flags().BoolVar(&scanAsk, "ask", false, "show what will be scanned and prompt for confirmation before starting")
	scanCmd.Flags().BoolVar(&scanDebug, "debug", false, "fail immediately when a directory can't be read instead of skipping it")
}
