package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/majorcontext/earshot/internal/capture"
	"github.com/majorcontext/earshot/internal/log"
)

// RunShim handles the wrapper-substitution mode: the reporter was invoked
// through a shim link named after a real tool (gcc, cc, ...). It records the
// execution using the inherited session environment and forwards to the
// first PATH entry that is not the shim itself.
func RunShim(argv []string) error {
	name := filepath.Base(argv[0])
	destination := os.Getenv(capture.EnvDestination)
	verbose := os.Getenv(capture.EnvVerbose) == "true"
	log.Init(log.Options{Verbose: verbose})

	real, err := findReal(name)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	inv := Invocation{
		Destination: destination,
		Verbose:     verbose,
		Execute:     real,
		Command:     argv,
	}
	if destination == "" {
		// No session in the environment: behave as a plain passthrough.
		log.Debug("no session destination, forwarding without capture", "tool", name)
		return inv.Forward()
	}
	if err := inv.Record(); err != nil {
		log.Warn("event not recorded", "destination", destination, "error", err)
	}
	return inv.Forward()
}

// findReal locates the real tool behind a shim name by walking PATH and
// skipping entries that resolve back to this binary.
func findReal(name string) (string, error) {
	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating self: %w", err)
	}
	selfInfo, err := os.Stat(self)
	if err != nil {
		return "", fmt.Errorf("locating self: %w", err)
	}

	for _, dir := range strings.Split(os.Getenv(capture.PathKey), string(filepath.ListSeparator)) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if os.SameFile(selfInfo, info) {
			continue
		}
		if info.Mode()&0111 == 0 {
			continue
		}
		return candidate, nil
	}
	return "", fmt.Errorf("no real %s behind the shim in PATH", name)
}
