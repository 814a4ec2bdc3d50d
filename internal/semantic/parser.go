package semantic

import (
	"path/filepath"
	"strings"
)

// sourceExtensions covers the languages the built-in tools compile. The
// recognizer does not parse source code; extensions are the only signal.
var sourceExtensions = map[string]bool{
	// C
	".c": true,
	// C++
	".cc": true, ".cp": true, ".cxx": true, ".cpp": true, ".c++": true, ".C": true,
	// Objective-C / Objective-C++
	".m": true, ".mm": true, ".M": true,
	// Assembly
	".s": true, ".S": true, ".sx": true,
	// CUDA
	".cu": true,
	// Fortran
	".f": true, ".for": true, ".ftn": true,
	".f90": true, ".f95": true, ".f03": true, ".f08": true,
	".F": true, ".F90": true, ".F95": true, ".F03": true, ".F08": true,
}

// queryFlags make an invocation a query rather than a compilation.
var queryFlags = map[string]bool{
	"--version":          true,
	"--help":             true,
	"-###":               true,
	"-dumpversion":       true,
	"-dumpmachine":       true,
	"-print-search-dirs": true,
	// Preprocess-only runs produce no object and carry no value for static
	// analysis of the final database.
	"-E": true,
}

// droppedFlags are flags never retained in entries. The dependency-file
// bookkeeping flags mean nothing to tooling that replays the database; the
// value reports whether the flag consumes the following argument.
var droppedFlags = map[string]bool{
	"-M":   false,
	"-MM":  false,
	"-MD":  false,
	"-MMD": false,
	"-MG":  false,
	"-MP":  false,
	"-MF":  true,
	"-MT":  true,
	"-MQ":  true,
	"-c":   false,
}

// separateValueFlags consume the next argument and are retained with it.
var separateValueFlags = map[string]bool{
	"-x": true, "-I": true, "-D": true, "-U": true,
	"-include": true, "-imacros": true, "-isystem": true,
	"-iquote": true, "-idirafter": true, "-iprefix": true,
	"-arch": true, "-target": true,
	"-Xpreprocessor": true, "-Xassembler": true, "-Xclang": true,
}

// compilerCall classifies a compiler argument list. The argument list starts
// at argv[1]; argv[0] is the compiler itself. Returns a QueryCall when the
// arguments ask the compiler about itself, otherwise a CompilerCall (which
// may have no sources, e.g. a pure link step).
func compilerCall(compiler, workingDir string, arguments []string) Semantic {
	var sources []string
	var output string
	var flags []string

	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case queryFlags[arg]:
			return &QueryCall{}
		case arg == "-o":
			if i+1 < len(arguments) {
				i++
				output = arguments[i]
			}
		case isDropped(arg):
			if droppedFlags[arg] {
				i++
			}
		case separateValueFlags[arg]:
			flags = append(flags, arg)
			if i+1 < len(arguments) {
				i++
				flags = append(flags, arguments[i])
			}
		case isSource(arg):
			sources = append(sources, arg)
		default:
			flags = append(flags, arg)
		}
	}

	return &CompilerCall{
		Compiler:   compiler,
		WorkingDir: workingDir,
		Sources:    sources,
		Output:     output,
		Flags:      flags,
	}
}

func isDropped(arg string) bool {
	if _, ok := droppedFlags[arg]; ok {
		return true
	}
	// Attached forms like -MFdeps.d.
	return strings.HasPrefix(arg, "-MF") || strings.HasPrefix(arg, "-MT") || strings.HasPrefix(arg, "-MQ")
}

func isSource(arg string) bool {
	if arg == "" || arg[0] == '-' {
		return false
	}
	return sourceExtensions[filepath.Ext(arg)]
}

// applyOverrides applies a configured compiler's flag overrides to a
// recognized call. Removals match whole arguments.
func applyOverrides(call *CompilerCall, add, remove []string) *CompilerCall {
	if len(remove) > 0 {
		removed := make(map[string]bool, len(remove))
		for _, r := range remove {
			removed[r] = true
		}
		kept := call.Flags[:0]
		for _, f := range call.Flags {
			if !removed[f] {
				kept = append(kept, f)
			}
		}
		call.Flags = kept
	}
	call.Flags = append(call.Flags, add...)
	return call
}
