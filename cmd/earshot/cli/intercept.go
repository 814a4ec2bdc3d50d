package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/majorcontext/earshot/internal/capture"
	"github.com/majorcontext/earshot/internal/config"
	"github.com/majorcontext/earshot/internal/events"
	"github.com/majorcontext/earshot/internal/log"
)

var (
	interceptEvents   string
	interceptLibrary  string
	interceptReporter string
	interceptWrapper  bool
	interceptWrapDir  string
)

var interceptCmd = &cobra.Command{
	Use:   "intercept [flags] -- <build command>",
	Short: "Run a build and capture every execution it performs",
	Long: `Runs the given build command under capture and records every process
execution into the event store, without producing a compilation database.
Use "earshot semantic" afterwards to turn the store into one.`,
	Args: requireDashedCommand,
	RunE: func(cmd *cobra.Command, args []string) error {
		command := args[cmd.ArgsLenAtDash():]
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		exitCode, err := captureBuild(command, interceptEvents, cfg)
		if err != nil {
			return err
		}
		if exitCode != 0 {
			return &exitError{code: exitCode}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(interceptCmd)
	interceptCmd.Flags().StringVar(&interceptEvents, "events", "events.db", "event store to write")
	addCaptureFlags(interceptCmd)
}

// addCaptureFlags registers the session-mechanism flags shared by the
// capturing commands.
func addCaptureFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&interceptLibrary, "library", defaultLibrary, "preload library injected into the build")
	cmd.Flags().StringVar(&interceptReporter, "reporter", "", "path to the earshot-report binary")
	cmd.Flags().BoolVar(&interceptWrapper, "wrapper", false, "use PATH shims instead of the preload library")
	cmd.Flags().StringVar(&interceptWrapDir, "wrapper-dir", "", "directory for the PATH shims (default: a temporary directory)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path of the config file")
}

// requireDashedCommand insists on a "--"-separated build command so the
// build's own flags never collide with ours.
func requireDashedCommand(cmd *cobra.Command, args []string) error {
	at := cmd.ArgsLenAtDash()
	if at < 0 || at == len(args) {
		return fmt.Errorf("missing build command; usage: %s -- <command>", cmd.CommandPath())
	}
	return nil
}

// captureBuild creates the event store, builds a session, and runs the
// build command under it. It returns the build's exit code; a non-zero
// build is not an error here, the caller decides what it means.
func captureBuild(command []string, eventsPath string, cfg config.Config) (int, error) {
	destination, err := filepath.Abs(eventsPath)
	if err != nil {
		return 0, fmt.Errorf("resolving event store path: %w", err)
	}
	store, err := events.Create(destination)
	if err != nil {
		return 0, err
	}
	if err := store.Close(); err != nil {
		return 0, fmt.Errorf("initializing event store: %w", err)
	}

	session, cleanup, err := newSession(destination, cfg)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	wd, err := os.Getwd()
	if err != nil {
		return 0, fmt.Errorf("resolving working directory: %w", err)
	}
	build := capture.Execution{
		Executable:  command[0],
		Arguments:   command,
		WorkingDir:  wd,
		Environment: capture.Environ(),
	}
	plan := session.Supervise(build)

	log.Debug("supervising build", "command", command, "destination", destination)
	proc := exec.Command(plan.Executable, plan.Arguments[1:]...)
	proc.Dir = plan.WorkingDir
	proc.Env = capture.EnvironList(plan.Environment)
	proc.Stdin = os.Stdin
	proc.Stdout = os.Stdout
	proc.Stderr = os.Stderr

	if err := proc.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return ee.ExitCode(), nil
		}
		return 0, fmt.Errorf("starting build command: %w", err)
	}
	return 0, nil
}

// newSession builds the capture session from the flags. The cleanup removes
// any temporary wrapper directory.
func newSession(destination string, cfg config.Config) (capture.Session, func(), error) {
	reporter, err := reporterPath(interceptReporter)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {}

	if interceptWrapper {
		dir := interceptWrapDir
		if dir == "" {
			tmp, err := os.MkdirTemp("", "earshot-wrappers-")
			if err != nil {
				return nil, nil, fmt.Errorf("creating wrapper directory: %w", err)
			}
			dir = tmp
			cleanup = func() { os.RemoveAll(tmp) }
		}
		session, err := capture.NewWrapperSession(capture.Options{
			Verbose:     verbose,
			WrapperDir:  dir,
			Destination: destination,
			Reporter:    reporter,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		tools := append([]string(nil), capture.DefaultWrapperTools...)
		for _, cw := range cfg.Compilation.CompilersToRecognize {
			tools = append(tools, filepath.Base(cw.Executable))
		}
		if err := session.Populate(tools); err != nil {
			cleanup()
			return nil, nil, err
		}
		return session, cleanup, nil
	}

	session, err := capture.NewPreloadSession(capture.Options{
		Verbose:     verbose,
		Library:     interceptLibrary,
		Destination: destination,
		Reporter:    reporter,
	})
	if err != nil {
		return nil, nil, err
	}
	return session, cleanup, nil
}
