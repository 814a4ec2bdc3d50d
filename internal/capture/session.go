package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known environment keys inherited by every descendant of a supervised
// build. Descendants resolve the same destination locator through these keys,
// never through shared memory or IPC handles.
const (
	EnvDestination = "EARSHOT_DESTINATION"
	EnvReporter    = "EARSHOT_REPORTER"
	EnvVerbose     = "EARSHOT_VERBOSE"

	// PreloadKey is the glibc dynamic-linker preload variable.
	PreloadKey = "LD_PRELOAD"
	// PathKey is consulted by wrapper sessions.
	PathKey = "PATH"
)

// Reporter command-line contract. The session's Supervise output and the
// earshot-report binary must agree on these.
const (
	FlagDestination = "--destination"
	FlagVerbose     = "--verbose"
	FlagExecute     = "--execute"
	FlagCommand     = "--command"
)

// Session is the capture strategy for one supervised build. Resolve rewrites
// the environment of an about-to-run execution so that it (and everything it
// spawns) reports back; Supervise builds the reporter invocation that
// captures-then-forwards the directly supervised command. Neither method
// starts a process.
type Session interface {
	Resolve(ex Execution) (Execution, error)
	Supervise(ex Execution) Execution
	Destination() string
}

// Options configures a session. Destination and Reporter are required;
// Library is required for preload sessions, WrapperDir for wrapper sessions.
type Options struct {
	Verbose     bool
	Library     string
	WrapperDir  string
	Destination string
	Reporter    string
}

func (o Options) validate() error {
	if o.Destination == "" {
		return fmt.Errorf("session: destination locator is required")
	}
	if o.Reporter == "" {
		return fmt.Errorf("session: reporter path is required")
	}
	return nil
}

// PreloadSession propagates capture through the dynamic linker: every
// descendant process inherits the preload library and the well-known keys.
type PreloadSession struct {
	verbose     bool
	library     string
	reporter    string
	destination string
}

// NewPreloadSession validates the options and builds a preload session.
func NewPreloadSession(opts Options) (*PreloadSession, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Library == "" {
		return nil, fmt.Errorf("session: preload library path is required")
	}
	return &PreloadSession{
		verbose:     opts.Verbose,
		library:     opts.Library,
		reporter:    opts.Reporter,
		destination: opts.Destination,
	}, nil
}

// Destination returns the event-store locator shared with descendants.
func (s *PreloadSession) Destination() string { return s.destination }

// Resolve returns a copy of ex with the capture environment applied. It
// fails only if the environment cannot be constructed, never on the
// execution's own content.
func (s *PreloadSession) Resolve(ex Execution) (Execution, error) {
	ex.Environment = s.rewrite(ex.Environment)
	return ex, nil
}

// Supervise wraps ex in a reporter invocation so the directly supervised
// command is captured and forwarded in one hop. Further descendants are
// covered by the inherited environment.
func (s *PreloadSession) Supervise(ex Execution) Execution {
	return superviseWith(s.reporter, s.destination, s.verbose, ex, s.rewrite(ex.Environment))
}

// rewrite is idempotent: applying it twice duplicates neither the preload
// entry nor the well-known keys.
func (s *PreloadSession) rewrite(env map[string]string) map[string]string {
	out := rewriteCommon(env, s.destination, s.reporter, s.verbose)
	out[PreloadKey] = KeepFront(s.library, out[PreloadKey], preloadSeparator)
	return out
}

// WrapperSession substitutes known tool names with reporting shims found in
// a dedicated directory, prepended to PATH. It covers platforms or build
// setups where dynamic-linker preloading is unavailable (static binaries,
// hardened runtimes).
type WrapperSession struct {
	verbose     bool
	wrapperDir  string
	reporter    string
	destination string
}

// NewWrapperSession validates the options and builds a wrapper session.
func NewWrapperSession(opts Options) (*WrapperSession, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.WrapperDir == "" {
		return nil, fmt.Errorf("session: wrapper directory is required")
	}
	dir, err := filepath.Abs(opts.WrapperDir)
	if err != nil {
		return nil, fmt.Errorf("session: resolving wrapper directory: %w", err)
	}
	return &WrapperSession{
		verbose:     opts.Verbose,
		wrapperDir:  dir,
		reporter:    opts.Reporter,
		destination: opts.Destination,
	}, nil
}

// Destination returns the event-store locator shared with descendants.
func (s *WrapperSession) Destination() string { return s.destination }

// Resolve puts the wrapper directory at the front of PATH so shims win the
// lookup, and applies the common capture keys.
func (s *WrapperSession) Resolve(ex Execution) (Execution, error) {
	ex.Environment = s.rewrite(ex.Environment)
	return ex, nil
}

// Supervise wraps ex in a reporter invocation, same contract as the preload
// variant.
func (s *WrapperSession) Supervise(ex Execution) Execution {
	return superviseWith(s.reporter, s.destination, s.verbose, ex, s.rewrite(ex.Environment))
}

func (s *WrapperSession) rewrite(env map[string]string) map[string]string {
	out := rewriteCommon(env, s.destination, s.reporter, s.verbose)
	out[PathKey] = KeepFront(s.wrapperDir, out[PathKey], pathSeparator)
	return out
}

// DefaultWrapperTools are the tool names a wrapper session shims when the
// configuration does not name any compilers.
var DefaultWrapperTools = []string{
	"cc", "c++", "gcc", "g++", "clang", "clang++", "gfortran",
}

// Populate fills the wrapper directory with shim links, one per tool name,
// each pointing at the reporter. Existing links are replaced so a reused
// directory stays consistent with the current session.
func (s *WrapperSession) Populate(tools []string) error {
	if err := os.MkdirAll(s.wrapperDir, 0755); err != nil {
		return fmt.Errorf("session: creating wrapper directory: %w", err)
	}
	for _, tool := range tools {
		link := filepath.Join(s.wrapperDir, filepath.Base(tool))
		if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("session: replacing shim %s: %w", link, err)
		}
		if err := os.Symlink(s.reporter, link); err != nil {
			return fmt.Errorf("session: creating shim %s: %w", link, err)
		}
	}
	return nil
}

const (
	preloadSeparator = ":"
	pathSeparator    = string(filepath.ListSeparator)
)

func rewriteCommon(env map[string]string, destination, reporter string, verbose bool) map[string]string {
	out := make(map[string]string, len(env)+4)
	for k, v := range env {
		out[k] = v
	}
	if verbose {
		out[EnvVerbose] = "true"
	}
	out[EnvDestination] = destination
	out[EnvReporter] = reporter
	return out
}

func superviseWith(reporter, destination string, verbose bool, ex Execution, env map[string]string) Execution {
	args := []string{reporter, FlagDestination, destination}
	if verbose {
		args = append(args, FlagVerbose)
	}
	args = append(args, FlagExecute, ex.Executable, FlagCommand)
	args = append(args, ex.Arguments...)
	return Execution{
		Executable:  reporter,
		Arguments:   args,
		WorkingDir:  ex.WorkingDir,
		Environment: env,
	}
}

// KeepFront returns list with element at the front exactly once. Existing
// occurrences are elided so repeated rewrites never grow the value, and
// pre-existing entries are preserved behind the element.
func KeepFront(element, list, separator string) string {
	if list == "" {
		return element
	}
	parts := strings.Split(list, separator)
	kept := parts[:0]
	for _, p := range parts {
		if p != element && p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return element
	}
	return element + separator + strings.Join(kept, separator)
}
