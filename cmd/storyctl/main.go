// Command storyctl is the operator CLI of storywire.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storywire/internal/observability/logging"
)

// Version is set at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.SanitizeError(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storyctl",
		Short:         "Operate the storywire news pipeline",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("feeds", "", "feed list YAML (default $FEEDS_FILE or configs/feeds.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(breakerCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(feedsCmd())
	root.AddCommand(drainCmd())
	return root
}
