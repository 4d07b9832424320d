package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// serverStubCmd, configStubCmd, and upgradeStubCmd are documented but
// unimplemented: running siftd, editing the TOML config, and self-update
// are each either a separate binary (siftd) or out of scope for this CLI.
var serverStubCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the inventory service (use the siftd binary instead)",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("sift server is not a subcommand: run the siftd binary directly")
		return nil
	},
}

var configStubCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the active configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("server:        %s\n", cfg.CLI.Server)
		fmt.Printf("agent host:    %s\n", cfg.Agent.Host)
		fmt.Printf("config path:   %s\n", configPath)
		return nil
	},
}

var upgradeStubCmd = &cobra.Command{
	Use:    "upgrade",
	Short:  "Self-update (not implemented)",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("sift upgrade is not implemented")
	},
}
