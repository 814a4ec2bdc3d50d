// Package semantic classifies captured executions into compiler calls and
// expands them into compilation-database entries.
package semantic

import (
	"path/filepath"

	"github.com/majorcontext/earshot/internal/compiledb"
)

// Semantic is the classification of one execution. Concrete types are
// CompilerCall and QueryCall; a nil Semantic means the execution was not
// recognized, which is the normal case for most tools a build invokes.
type Semantic interface {
	semantic()
}

// QueryCall is a compiler invocation that queries the compiler rather than
// compiling: --version, --help, preprocess-only runs and the like. It is
// recognized (so callers can tell it apart from noise) but contributes no
// entries.
type QueryCall struct{}

func (*QueryCall) semantic() {}

// CompilerCall is a recognized compilation. One invocation may name several
// sources; it expands to one entry per source, all sharing compiler, output
// and flags.
type CompilerCall struct {
	Compiler   string
	WorkingDir string
	Sources    []string
	Output     string
	Flags      []string
}

func (*CompilerCall) semantic() {}

// Entries expands the call into compilation-database rows. File and output
// paths are made absolute against the captured working directory so
// downstream filtering does not depend on where the build ran from.
func (c *CompilerCall) Entries() []compiledb.Entry {
	entries := make([]compiledb.Entry, 0, len(c.Sources))
	for _, src := range c.Sources {
		args := make([]string, 0, len(c.Flags)+5)
		args = append(args, c.Compiler)
		args = append(args, c.Flags...)
		args = append(args, "-c", src)
		output := c.Output
		if output != "" {
			args = append(args, "-o", output)
			output = c.absolute(output)
		}
		entries = append(entries, compiledb.Entry{
			File:      c.absolute(src),
			Directory: c.WorkingDir,
			Output:    output,
			Arguments: args,
		})
	}
	return entries
}

func (c *CompilerCall) absolute(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.WorkingDir, path)
}
