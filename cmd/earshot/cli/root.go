// Package cli implements the earshot command-line interface using Cobra.
// It provides commands for capturing a build's process executions and for
// turning the captured events into a JSON compilation database.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/majorcontext/earshot/internal/log"
)

var (
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "earshot",
	Short: "Earshot - compilation database generator for arbitrary builds",
	Long: `Earshot observes every process a build spawns, recognizes the
compiler calls among them, and persists a deduplicated JSON compilation
database (compile_commands.json) for clang tooling, static analyzers and
language servers.

Capture works without the build's cooperation: the supervised command is
wrapped in a reporting helper, and its descendants inherit a preload
library (or PATH shims) that report every execution into a shared event
store.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Options{
			Verbose:    verbose,
			JSONFormat: jsonOut,
		})
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "JSON log output")
}
