package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sift-inventory/sift/internal/protocol"
)

var (
	trimHost        string
	trimRecursive   bool
	trimDeletedOnly bool
	trimPatterns    []string
	trimLimit       int
	trimPreview     bool
	trimYes         bool
)

var trimCmd = &cobra.Command{
	Use:   "trim <path-prefix>",
	Short: "Delete stale inventory entries under a path prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if trimHost == "" {
			return fmt.Errorf("--host is required")
		}

		req := protocol.TrimRequest{
			Host:        trimHost,
			PathPrefix:  args[0],
			Recursive:   trimRecursive,
			DeletedOnly: trimDeletedOnly,
			Patterns:    trimPatterns,
			Limit:       trimLimit,
			Preview:     true,
		}

		var preview protocol.TrimResponse
		if err := qc.postJSON(cmd.Context(), "/trim", req, &preview); err != nil {
			return err
		}

		if preview.Matched == 0 {
			fmt.Println("nothing matches this trim request")
			return nil
		}

		fmt.Printf("%d entries match under %s on %s:\n", preview.Matched, req.PathPrefix, trimHost)
		for _, p := range preview.PreviewPaths {
			fmt.Println("  " + p)
		}
		if preview.Matched > len(preview.PreviewPaths) {
			fmt.Printf("  ... and %d more\n", preview.Matched-len(preview.PreviewPaths))
		}

		if trimPreview {
			return nil
		}
		if !trimYes && !confirm(fmt.Sprintf("Delete %d inventory entries? [y/N] ", preview.Matched)) {
			fmt.Println("aborted")
			return nil
		}

		// Each call deletes at most one page; with no --limit, keep calling
		// until a call deletes nothing.
		req.Preview = false
		deleted := 0
		for {
			var result protocol.TrimResponse
			if err := qc.postJSON(cmd.Context(), "/trim", req, &result); err != nil {
				return err
			}
			deleted += result.Deleted
			if result.Deleted == 0 || trimLimit > 0 {
				break
			}
		}
		fmt.Printf("deleted %d entries\n", deleted)
		return nil
	},
}

// confirm prompts prompt on stdout and reads a yes/no answer from stdin,
// defaulting to no on anything but an explicit y/yes.
func confirm(prompt string) bool {
	fmt.Print(prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func init() {
	trimCmd.Flags().StringVar(&trimHost, "host", "", "host to trim (required)")
	trimCmd.Flags().BoolVar(&trimRecursive, "recursive", true, "match everything under the prefix, not just direct children")
	trimCmd.Flags().BoolVar(&trimDeletedOnly, "deleted-only", false, "only trim entries whose file no longer exists on disk")
	trimCmd.Flags().StringSliceVar(&trimPatterns, "pattern", nil, "additional glob patterns to match within the prefix")
	trimCmd.Flags().IntVar(&trimLimit, "limit", 0, "cap the number of entries trimmed (0 = no limit)")
	trimCmd.Flags().BoolVar(&trimPreview, "preview", false, "show matches without deleting")
	trimCmd.Flags().BoolVarP(&trimYes, "yes", "y", false, "skip the confirmation prompt")
}
