package main

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/sift-inventory/sift/internal/protocol"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show every host's last scan and inventory totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		var hosts []protocol.HostEntry
		if err := qc.get(cmd.Context(), "/hosts", nil, &hosts); err != nil {
			return err
		}
		if len(hosts) == 0 {
			fmt.Println("no hosts have scanned yet")
			return nil
		}
		for _, h := range hosts {
			fmt.Printf("%-16s  last scan %s  %s  %d files (%d hashed)\n",
				h.Host, h.LastScanAt.Local().Format("2006-01-02 15:04"),
				units.HumanSize(float64(h.TotalBytes)), h.TotalFiles, h.TotalHashed)
		}
		return nil
	},
}
