// Package report implements the capture-then-forward helper behind the
// earshot-report binary. One invocation records exactly one execution event
// and then replaces itself with the real program.
package report

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/majorcontext/earshot/internal/capture"
	"github.com/majorcontext/earshot/internal/events"
	"github.com/majorcontext/earshot/internal/id"
	"github.com/majorcontext/earshot/internal/log"
)

// Invocation is the parsed reporter command line. The flag layout is a wire
// contract with the session's Supervise output and with the preload hook,
// not a user-facing CLI.
type Invocation struct {
	Destination string
	Verbose     bool
	Execute     string
	Command     []string
}

// ParseArgs parses argv (excluding argv[0]). Everything after the command
// flag belongs to the forwarded program verbatim, flags included.
func ParseArgs(argv []string) (Invocation, error) {
	var inv Invocation
	i := 0
	for i < len(argv) {
		switch argv[i] {
		case capture.FlagDestination:
			if i+1 >= len(argv) {
				return Invocation{}, fmt.Errorf("report: %s needs a value", capture.FlagDestination)
			}
			inv.Destination = argv[i+1]
			i += 2
		case capture.FlagVerbose:
			inv.Verbose = true
			i++
		case capture.FlagExecute:
			if i+1 >= len(argv) {
				return Invocation{}, fmt.Errorf("report: %s needs a value", capture.FlagExecute)
			}
			inv.Execute = argv[i+1]
			i += 2
		case capture.FlagCommand:
			inv.Command = argv[i+1:]
			i = len(argv)
		default:
			return Invocation{}, fmt.Errorf("report: unexpected argument %q", argv[i])
		}
	}
	if inv.Destination == "" {
		return Invocation{}, fmt.Errorf("report: destination locator is required")
	}
	if inv.Execute == "" {
		return Invocation{}, fmt.Errorf("report: executable to forward to is required")
	}
	if len(inv.Command) == 0 {
		inv.Command = []string{filepath.Base(inv.Execute)}
	}
	return inv, nil
}

// Record appends one event describing the forwarded execution. Failures are
// returned to the caller, who treats them as advisory: a lost event must
// never break the build.
func (inv Invocation) Record() error {
	store, err := events.OpenAppend(inv.Destination)
	if err != nil {
		return err
	}
	defer store.Close()

	ex := capture.CurrentExecution(inv.Execute, inv.Command)
	return store.Append(id.Generate("rpt"), capture.NewEvent(ex))
}

// Forward replaces the current process with the real program. It returns
// only on failure.
func (inv Invocation) Forward() error {
	path := inv.Execute
	if !filepath.IsAbs(path) {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return fmt.Errorf("report: locating %s: %w", path, err)
		}
		path = resolved
	}
	if err := unix.Exec(path, inv.Command, os.Environ()); err != nil {
		return fmt.Errorf("report: executing %s: %w", path, err)
	}
	return nil
}

// Run records and forwards. A failed append is logged and the forward still
// happens; reporters are advisory, the build is not.
func Run(argv []string) error {
	inv, err := ParseArgs(argv)
	if err != nil {
		return err
	}
	log.Init(log.Options{Verbose: inv.Verbose})

	if err := inv.Record(); err != nil {
		log.Warn("event not recorded", "destination", inv.Destination, "error", err)
	} else {
		log.Debug("event recorded", "executable", inv.Execute, "destination", inv.Destination)
	}
	return inv.Forward()
}
