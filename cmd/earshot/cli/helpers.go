package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/majorcontext/earshot/internal/config"
	"github.com/majorcontext/earshot/internal/log"
)

// defaultLibrary is where the install step places the preload hook.
const defaultLibrary = "/usr/local/lib/earshot/libexec.so"

// loadConfig loads --config if given, the defaults otherwise.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// reporterPath resolves the earshot-report binary: an explicit flag wins,
// then a binary next to the running executable, then PATH.
func reporterPath(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), "earshot-report")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	if found, err := exec.LookPath("earshot-report"); err == nil {
		return filepath.Abs(found)
	}
	return "", fmt.Errorf("earshot-report not found; install it next to earshot or pass --reporter")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// removeEvents deletes the event store and its sqlite sidecar files.
func removeEvents(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn("event store not removed", "path", p, "error", err)
		}
	}
}

// exitError carries a supervised build's exit code to main.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("build command exited with status %d", e.code)
}

// ExitCode maps an Execute error to a process exit code. A failed build
// propagates its own code; other failures exit 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}
