package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/sift-inventory/sift/internal/protocol"
)

var (
	lsHost    string
	lsDepth   int
	lsMinSize string
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List a directory's contents as aggregated by the inventory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/"
		if len(args) == 1 {
			path = args[0]
		}
		if lsHost == "" {
			return fmt.Errorf("--host is required")
		}

		q := url.Values{"host": {lsHost}, "path": {path}}
		if lsDepth > 0 {
			q.Set("depth", strconv.Itoa(lsDepth))
		}
		if lsMinSize != "" {
			n, err := units.FromHumanSize(lsMinSize)
			if err != nil {
				return fmt.Errorf("--min-size: %w", err)
			}
			q.Set("min_size", strconv.FormatInt(n, 10))
		}

		var entries []protocol.LsEntry
		if err := qc.get(cmd.Context(), "/files/ls", q, &entries); err != nil {
			return err
		}
		printLsEntries(entries)
		return nil
	},
}

func printLsEntries(entries []protocol.LsEntry) {
	for _, e := range entries {
		if e.EntryType == "dir" {
			fmt.Printf("%-9s  %6d files  %10s  %s/\n",
				"dir", e.FileCount, units.HumanSize(float64(e.TotalBytes)), e.Segment)
			continue
		}
		size := int64(0)
		if e.SizeBytes != nil {
			size = *e.SizeBytes
		}
		dupMark := ""
		if e.DupCount > 0 {
			dupMark = fmt.Sprintf("  [%d dup]", e.DupCount)
		}
		fmt.Printf("%-9s  %6s  %10s  %s%s\n", "file", "-", units.HumanSize(float64(size)), e.Filename, dupMark)
	}
}

func init() {
	lsCmd.Flags().StringVar(&lsHost, "host", "", "host to list (required)")
	lsCmd.Flags().IntVar(&lsDepth, "depth", 1, "listing depth")
	lsCmd.Flags().StringVar(&lsMinSize, "min-size", "", "hide files smaller than this (e.g. 10M)")
}
