package semantic

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/majorcontext/earshot/internal/capture"
	"github.com/majorcontext/earshot/internal/config"
)

// Tool recognizes executions belonging to one compiler family. Returning a
// nil Semantic with a nil error means the tool does not claim the
// executable; an error means the tool claimed it but extraction failed.
type Tool interface {
	Recognize(ex capture.Execution) (Semantic, error)
}

// Build is the ordered tool registry. Tools are tried in registration
// order; the first that claims an executable wins.
type Build struct {
	tools []Tool
}

// NewBuild assembles the registry from the configuration and the analysis
// environment. Compilers named by CC, CXX and FC are folded into the
// configured set so designated-but-unknown compilers are still captured;
// explicitly configured compilers take precedence over the built-in
// pattern-matching tools.
func NewBuild(cfg config.Compilation, environ map[string]string) *Build {
	wrappers := cfg.CompilersToRecognize
	for _, key := range []string{"CC", "CXX", "FC"} {
		path, ok := environ[key]
		if !ok || path == "" {
			continue
		}
		known := false
		for _, w := range wrappers {
			if w.Executable == path {
				known = true
				break
			}
		}
		if !known {
			wrappers = append(wrappers, config.CompilerWrapper{Executable: path})
		}
	}

	b := &Build{}
	for _, w := range wrappers {
		b.tools = append(b.tools, &configuredTool{wrapper: w})
	}
	b.tools = append(b.tools,
		&unwrapTool{build: b},
		&matchTool{pattern: gccPattern},
		&matchTool{pattern: fortranPattern},
	)
	return b
}

// Recognize classifies one execution. A nil Semantic with nil error means
// unrecognized, which is not an error: builds invoke many non-compiler
// tools.
func (b *Build) Recognize(ex capture.Execution) (Semantic, error) {
	return b.recognize(ex, 0)
}

func (b *Build) recognize(ex capture.Execution, depth int) (Semantic, error) {
	if ex.Executable == "" {
		return nil, fmt.Errorf("recognize: execution has no executable")
	}
	for _, tool := range b.tools {
		if u, ok := tool.(*unwrapTool); ok {
			sem, err := u.recognize(ex, depth)
			if sem != nil || err != nil {
				return sem, err
			}
			continue
		}
		sem, err := tool.Recognize(ex)
		if sem != nil || err != nil {
			return sem, err
		}
	}
	return nil, nil
}

// Compiler executable name patterns, anchored on the basename. They accept
// cross-compile prefixes (arm-linux-gnueabi-gcc) and version suffixes
// (clang++-17, gcc-12.2).
var (
	gccPattern     = regexp.MustCompile(`^([\w.+]+-)*(cc|c\+\+|gcc|g\+\+|clang|clang\+\+)(-[\d.]+)?$`)
	fortranPattern = regexp.MustCompile(`^([\w.+]+-)*(gfortran|flang|f77|f95)(-[\d.]+)?$`)
	unwrapPattern  = regexp.MustCompile(`^(ccache|distcc|sccache|icecc)$`)
)

// matchTool recognizes compilers by executable name pattern.
type matchTool struct {
	pattern *regexp.Regexp
}

func (t *matchTool) Recognize(ex capture.Execution) (Semantic, error) {
	if !t.pattern.MatchString(filepath.Base(ex.Executable)) {
		return nil, nil
	}
	if len(ex.Arguments) == 0 {
		return nil, fmt.Errorf("recognize %s: empty argument list", ex.Executable)
	}
	return compilerCall(ex.Executable, ex.WorkingDir, ex.Arguments[1:]), nil
}

// configuredTool recognizes one explicitly configured compiler, by full path
// or by basename, and applies its flag overrides.
type configuredTool struct {
	wrapper config.CompilerWrapper
}

func (t *configuredTool) Recognize(ex capture.Execution) (Semantic, error) {
	if ex.Executable != t.wrapper.Executable &&
		filepath.Base(ex.Executable) != filepath.Base(t.wrapper.Executable) {
		return nil, nil
	}
	if len(ex.Arguments) == 0 {
		return nil, fmt.Errorf("recognize %s: empty argument list", ex.Executable)
	}
	sem := compilerCall(ex.Executable, ex.WorkingDir, ex.Arguments[1:])
	if call, ok := sem.(*CompilerCall); ok {
		sem = applyOverrides(call, t.wrapper.FlagsToAdd, t.wrapper.FlagsToRemove)
	}
	return sem, nil
}

// unwrapTool strips compiler launchers (ccache cc ...) and re-recognizes the
// wrapped command.
type unwrapTool struct {
	build *Build
}

const maxUnwrapDepth = 4

func (t *unwrapTool) Recognize(ex capture.Execution) (Semantic, error) {
	return t.recognize(ex, 0)
}

func (t *unwrapTool) recognize(ex capture.Execution, depth int) (Semantic, error) {
	if !unwrapPattern.MatchString(filepath.Base(ex.Executable)) {
		return nil, nil
	}
	if depth >= maxUnwrapDepth {
		return nil, fmt.Errorf("recognize %s: launcher nesting too deep", ex.Executable)
	}
	if len(ex.Arguments) < 2 {
		// A bare launcher invocation (ccache -s and friends).
		return &QueryCall{}, nil
	}
	inner := capture.Execution{
		Executable:  ex.Arguments[1],
		Arguments:   ex.Arguments[1:],
		WorkingDir:  ex.WorkingDir,
		Environment: ex.Environment,
	}
	return t.build.recognize(inner, depth+1)
}
