// Command sift is the inventory CLI: scan a directory tree, list and
// search it, check for duplicates, and trim stale entries, all against a
// running siftd instance.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sift-inventory/sift/internal/config"
)

var (
	configPath string
	serverURL  string
	cfg        config.Config
	qc         *queryClient
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sift: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "File inventory and duplicate-detection across your hosts",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		if serverURL != "" {
			cfg.CLI.Server = serverURL
		}
		qc = newQueryClient(cfg.CLI.Server)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file (default ~/.sift.config)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "siftd base URL (default from config)")

	rootCmd.AddCommand(scanCmd, lsCmd, findCmd, duCmd, statusCmd, trimCmd,
		serverStubCmd, configStubCmd, upgradeStubCmd)
}
