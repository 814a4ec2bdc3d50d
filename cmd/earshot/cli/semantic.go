package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/majorcontext/earshot/internal/capture"
	"github.com/majorcontext/earshot/internal/compiledb"
	"github.com/majorcontext/earshot/internal/config"
	"github.com/majorcontext/earshot/internal/events"
	"github.com/majorcontext/earshot/internal/log"
	"github.com/majorcontext/earshot/internal/semantic"
)

var (
	configPath string

	semanticEvents    string
	semanticOutput    string
	semanticAppend    bool
	semanticRunChecks bool
)

var semanticCmd = &cobra.Command{
	Use:   "semantic [flags]",
	Short: "Build a compilation database from a previously captured event store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		var runChecks *bool
		if cmd.Flags().Changed("run-checks") {
			runChecks = &semanticRunChecks
		}
		count, err := analyze(semanticEvents, semanticOutput, semanticAppend, runChecks, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %d entries to %s\n", count, semanticOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(semanticCmd)
	semanticCmd.Flags().StringVar(&semanticEvents, "events", "events.db", "event store to read")
	semanticCmd.Flags().StringVarP(&semanticOutput, "output", "o", "compile_commands.json", "path of the result file")
	semanticCmd.Flags().BoolVarP(&semanticAppend, "append", "a", false, "append to an existing database instead of overwriting it")
	semanticCmd.Flags().BoolVar(&semanticRunChecks, "run-checks", false, "only keep entries whose source files exist")
	semanticCmd.Flags().StringVarP(&configPath, "config", "c", "", "path of the config file")
}

// analyze replays the event store, recognizes compiler calls, merges with a
// prior database when append is requested, and writes the result. It
// returns the number of entries written.
func analyze(eventsPath, outputPath string, appendMode bool, runChecks *bool, cfg config.Config) (int, error) {
	wd, err := os.Getwd()
	if err != nil {
		return 0, fmt.Errorf("resolving working directory: %w", err)
	}

	content := cfg.Output.Content
	if runChecks != nil {
		content.IncludeOnlyExistingSource = *runChecks
	}
	content = config.ResolveContent(content, wd)
	db := compiledb.New(cfg.Output.Format, content)

	store, err := events.OpenRead(eventsPath)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	cur, err := store.Events()
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	build := semantic.NewBuild(cfg.Compilation, capture.Environ())

	// Append mode merges a previous run first so that on key collision the
	// newly captured entry, appearing later in the sequence, wins.
	var entries []compiledb.Entry
	if appendMode && fileExists(outputPath) {
		old, err := db.FromJSON(outputPath, &entries)
		if err != nil {
			return 0, err
		}
		log.Debug("previous entries read", "count", old)
	}

	created := 0
	for cur.Next() {
		ev, err := cur.Event()
		if err != nil {
			log.Debug("skipping unreadable event", "error", err)
			continue
		}
		sem, err := build.Recognize(ev.Execution)
		if err != nil {
			log.Debug("recognition failed", "executable", ev.Execution.Executable, "error", err)
			continue
		}
		if call, ok := sem.(*semantic.CompilerCall); ok {
			expanded := call.Entries()
			created += len(expanded)
			entries = append(entries, expanded...)
		}
	}
	if err := cur.Err(); err != nil {
		return 0, fmt.Errorf("replaying event store: %w", err)
	}
	log.Debug("compilation entries created", "count", created)

	return db.ToJSON(outputPath, entries)
}
