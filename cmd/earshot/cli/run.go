package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	runEvents     string
	runOutput     string
	runAppend     bool
	runKeepEvents bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <build command>",
	Short: "Run a build and generate its compilation database",
	Long: `Runs the given build command under capture and writes the resulting
compilation database. This is the capture and analysis steps of
"earshot intercept" and "earshot semantic" in one go.

Examples:
  earshot run -- make all
  earshot run --append -o compile_commands.json -- ninja -C out/Release`,
	Args: requireDashedCommand,
	RunE: func(cmd *cobra.Command, args []string) error {
		command := args[cmd.ArgsLenAtDash():]
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		exitCode, err := captureBuild(command, runEvents, cfg)
		if err != nil {
			return err
		}

		count, err := analyze(runEvents, runOutput, runAppend, nil, cfg)
		if err != nil {
			return err
		}
		if !runKeepEvents {
			removeEvents(runEvents)
		}

		fmt.Printf("wrote %d entries to %s\n", count, runOutput)
		if exitCode != 0 {
			// The database is written either way; the build's own failure
			// still decides our exit status.
			return &exitError{code: exitCode}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runEvents, "events", "events.db", "event store to write")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "compile_commands.json", "path of the result file")
	runCmd.Flags().BoolVarP(&runAppend, "append", "a", false, "append to an existing database instead of overwriting it")
	runCmd.Flags().BoolVar(&runKeepEvents, "keep-events", false, "keep the event store after the database is written")
	addCaptureFlags(runCmd)
}
