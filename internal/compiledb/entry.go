// Package compiledb owns the JSON compilation database: entry filtering,
// deduplication, merge, and the on-disk format consumed by clang tooling.
// The format is documented at
// https://clang.llvm.org/docs/JSONCompilationDatabase.html.
package compiledb

import "strings"

// Entry is one row of the compilation database: a single source file and the
// command that compiles it. The (File, Output) pair is the natural key for
// deduplication.
type Entry struct {
	File      string
	Directory string
	Output    string
	Arguments []string
}

type entryJSON struct {
	File      string   `json:"file"`
	Directory string   `json:"directory"`
	Output    string   `json:"output,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
}

func (e Entry) key() string {
	return e.File + "\x00" + e.Output
}

// flatten joins arguments into a single shell-safe command string.
func flatten(arguments []string) string {
	quoted := make([]string, 0, len(arguments))
	for _, arg := range arguments {
		quoted = append(quoted, shellQuote(arg))
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\"'\\$&|;<>()*?[]#~%{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// splitCommand undoes flatten far enough to read databases written with the
// command-string format. Quoting beyond whitespace and simple quotes is not
// interpreted.
func splitCommand(command string) []string {
	var args []string
	var cur strings.Builder
	var quote byte
	inArg := false
	for i := 0; i < len(command); i++ {
		c := command[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteByte(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inArg = true
		case c == ' ' || c == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteByte(c)
			inArg = true
		}
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args
}
