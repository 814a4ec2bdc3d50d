// Package config handles the earshot.yaml configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the tool configuration. The zero value is a working default:
// every format knob and filter is off.
type Config struct {
	Compilation Compilation `yaml:"compilation,omitempty"`
	Output      Output      `yaml:"output,omitempty"`
}

// Compilation configures the recognizer.
type Compilation struct {
	// CompilersToRecognize lists compilers the recognizer accepts even when
	// no built-in tool matches them by name, with optional per-compiler flag
	// overrides.
	CompilersToRecognize []CompilerWrapper `yaml:"compilers_to_recognize,omitempty"`
}

// CompilerWrapper names one extra compiler and its flag overrides.
type CompilerWrapper struct {
	Executable    string   `yaml:"executable"`
	FlagsToAdd    []string `yaml:"flags_to_add,omitempty"`
	FlagsToRemove []string `yaml:"flags_to_remove,omitempty"`
}

// Output configures the compilation database file.
type Output struct {
	Format  Format  `yaml:"format,omitempty"`
	Content Content `yaml:"content,omitempty"`
}

// Format selects the on-disk shape of each entry.
type Format struct {
	// CommandAsArray writes the "arguments" array instead of a flattened
	// "command" string.
	CommandAsArray bool `yaml:"command_as_array"`
	// DropOutputField omits the "output" field from entries.
	DropOutputField bool `yaml:"drop_output_field,omitempty"`
}

// Content filters which entries reach the database.
type Content struct {
	IncludeOnlyExistingSource bool     `yaml:"include_only_existing_source,omitempty"`
	PathsToInclude            []string `yaml:"paths_to_include,omitempty"`
	PathsToExclude            []string `yaml:"paths_to_exclude,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Output: Output{
			Format: Format{CommandAsArray: true},
		},
	}
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	for i, cw := range cfg.Compilation.CompilersToRecognize {
		if cw.Executable == "" {
			return Config{}, fmt.Errorf("config %s: compilers_to_recognize[%d] is missing the executable", path, i)
		}
	}
	return cfg, nil
}

// ResolveContent rebases relative filter paths onto root so the filters are
// robust against working-directory changes between build and query time.
func ResolveContent(content Content, root string) Content {
	return Content{
		IncludeOnlyExistingSource: content.IncludeOnlyExistingSource,
		PathsToInclude:            toAbsolute(content.PathsToInclude, root),
		PathsToExclude:            toAbsolute(content.PathsToExclude, root),
	}
}

func toAbsolute(paths []string, root string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}
