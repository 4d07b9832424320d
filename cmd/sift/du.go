package main

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/sift-inventory/sift/internal/protocol"
)

var (
	duHost       string
	duMinSize    string
	duCategories []string
)

var duCmd = &cobra.Command{
	Use:   "du",
	Short: "Summarize disk usage and duplicate waste",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := url.Values{}
		if duHost != "" {
			q.Set("hosts", duHost)
		}
		if len(duCategories) > 0 {
			joined := ""
			for i, c := range duCategories {
				if i > 0 {
					joined += ","
				}
				joined += c
			}
			q.Set("categories", joined)
		}
		if duMinSize != "" {
			n, err := units.FromHumanSize(duMinSize)
			if err != nil {
				return fmt.Errorf("--min-size: %w", err)
			}
			q.Set("min_size", fmt.Sprintf("%d", n))
		}

		var overview protocol.StatsOverview
		if err := qc.get(cmd.Context(), "/stats/overview", q, &overview); err != nil {
			return err
		}

		fmt.Printf("Total files:    %d\n", overview.TotalFiles)
		fmt.Printf("Total size:     %s\n", units.HumanSize(float64(overview.TotalBytes)))
		fmt.Printf("Hashed:         %d\n", overview.TotalHashed)
		fmt.Printf("Duplicate sets: %d\n", overview.DuplicateSets)
		fmt.Printf("Wasted space:   %s\n", units.HumanSize(float64(overview.WastedBytes)))

		if len(overview.ByCategory) > 0 {
			type catCount struct {
				name  string
				count int64
			}
			cats := make([]catCount, 0, len(overview.ByCategory))
			for name, n := range overview.ByCategory {
				cats = append(cats, catCount{name, n})
			}
			sort.Slice(cats, func(i, j int) bool { return cats[i].count > cats[j].count })
			fmt.Println("\nBy category:")
			for _, c := range cats {
				fmt.Printf("  %-12s %d\n", c.name, c.count)
			}
		}
		return nil
	},
}

func init() {
	duCmd.Flags().StringVar(&duHost, "host", "", "restrict to one host")
	duCmd.Flags().StringVar(&duMinSize, "min-size", "", "only count files at least this large")
	duCmd.Flags().StringSliceVar(&duCategories, "category", nil, "restrict to these categories")
}
