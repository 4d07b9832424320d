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
	findHost     string
	findExt      string
	findCategory string
	findMinSize  string
	findMaxSize  string
	findHash     string
	findDupsOnly bool
	findLimit    int
)

var findCmd = &cobra.Command{
	Use:   "find [name-glob]",
	Short: "Search the inventory across hosts by name, type, size, or hash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if findHost != "" {
			q.Set("host", findHost)
		}
		if len(args) == 1 {
			q.Set("iname", args[0])
		}
		if findExt != "" {
			q.Set("ext", findExt)
		}
		if findCategory != "" {
			q.Set("category", findCategory)
		}
		if findHash != "" {
			q.Set("hash", findHash)
		}
		if findDupsOnly {
			q.Set("has_duplicates", "true")
		}
		if findMinSize != "" {
			n, err := units.FromHumanSize(findMinSize)
			if err != nil {
				return fmt.Errorf("--min-size: %w", err)
			}
			q.Set("min_size", strconv.FormatInt(n, 10))
		}
		if findMaxSize != "" {
			n, err := units.FromHumanSize(findMaxSize)
			if err != nil {
				return fmt.Errorf("--max-size: %w", err)
			}
			q.Set("max_size", strconv.FormatInt(n, 10))
		}
		if findLimit > 0 {
			q.Set("limit", strconv.Itoa(findLimit))
		}

		var results []protocol.FileEntry
		if err := qc.get(cmd.Context(), "/files", q, &results); err != nil {
			return err
		}
		for _, r := range results {
			size := int64(0)
			if r.SizeBytes != nil {
				size = *r.SizeBytes
			}
			dupMark := ""
			if r.HasDuplicates {
				dupMark = "  [dup]"
			}
			fmt.Printf("%-16s  %10s  %s%s\n", r.Host, units.HumanSize(float64(size)), r.PathDisplay, dupMark)
		}
		return nil
	},
}

func init() {
	findCmd.Flags().StringVar(&findHost, "host", "", "restrict to one host")
	findCmd.Flags().StringVar(&findExt, "ext", "", "restrict to one extension")
	findCmd.Flags().StringVar(&findCategory, "category", "", "restrict to one file category")
	findCmd.Flags().StringVar(&findMinSize, "min-size", "", "minimum size (e.g. 10M)")
	findCmd.Flags().StringVar(&findMaxSize, "max-size", "", "maximum size (e.g. 1G)")
	findCmd.Flags().StringVar(&findHash, "hash", "", "content-hash match (exact for a full 64-character hash, prefix otherwise)")
	findCmd.Flags().BoolVar(&findDupsOnly, "duplicates", false, "only files with duplicates elsewhere")
	findCmd.Flags().IntVar(&findLimit, "limit", 200, "maximum results")
}
