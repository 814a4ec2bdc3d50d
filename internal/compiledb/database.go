package compiledb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/majorcontext/earshot/internal/config"
	"github.com/majorcontext/earshot/internal/log"
)

// ErrNotFound is returned by FromJSON when the database file is absent,
// distinct from an empty-but-present file.
var ErrNotFound = errors.New("compilation database not found")

// Database applies a format and a content filter while persisting entries.
type Database struct {
	format  config.Format
	content config.Content
}

// New builds a Database. The content filter paths must already be absolute
// (see config.ResolveContent).
func New(format config.Format, content config.Content) *Database {
	return &Database{format: format, content: content}
}

// ToJSON writes the filtered, deduplicated entries to path and returns how
// many were written. The write is atomic: on failure the previous file is
// left untouched.
func (d *Database) ToJSON(path string, entries []Entry) (int, error) {
	kept := d.dedup(d.filter(entries))

	rows := make([]entryJSON, 0, len(kept))
	for _, e := range kept {
		row := entryJSON{
			File:      e.File,
			Directory: e.Directory,
		}
		if !d.format.DropOutputField {
			row.Output = e.Output
		}
		if d.format.CommandAsArray {
			row.Arguments = e.Arguments
		} else {
			row.Command = flatten(e.Arguments)
		}
		rows = append(rows, row)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encoding compilation database: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".earshot-*.json")
	if err != nil {
		return 0, fmt.Errorf("creating temporary database: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("writing compilation database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("writing compilation database: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("replacing compilation database: %w", err)
	}
	return len(rows), nil
}

// FromJSON reads a previously persisted database, appends its entries to out
// and returns how many were read. Used by append mode to merge with a prior
// run.
func (d *Database) FromJSON(path string, out *[]Entry) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return 0, fmt.Errorf("reading compilation database: %w", err)
	}
	var rows []entryJSON
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("parsing compilation database %s: %w", path, err)
	}
	for _, row := range rows {
		args := row.Arguments
		if len(args) == 0 && row.Command != "" {
			args = splitCommand(row.Command)
		}
		*out = append(*out, Entry{
			File:      row.File,
			Directory: row.Directory,
			Output:    row.Output,
			Arguments: args,
		})
	}
	return len(rows), nil
}

// filter drops entries rejected by the content configuration. The existence
// check runs here, at database-build time, because sources may be generated
// or removed between capture and query.
func (d *Database) filter(entries []Entry) []Entry {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !d.contains(e.File) {
			log.Debug("entry outside content filter", "file", e.File)
			continue
		}
		if d.content.IncludeOnlyExistingSource {
			if _, err := os.Stat(e.File); err != nil {
				log.Debug("entry source missing", "file", e.File)
				continue
			}
		}
		kept = append(kept, e)
	}
	return kept
}

// contains applies the prefix filters. Exclusion wins over inclusion; an
// empty include list admits everything.
func (d *Database) contains(file string) bool {
	for _, p := range d.content.PathsToExclude {
		if hasPathPrefix(file, p) {
			return false
		}
	}
	if len(d.content.PathsToInclude) == 0 {
		return true
	}
	for _, p := range d.content.PathsToInclude {
		if hasPathPrefix(file, p) {
			return true
		}
	}
	return false
}

// dedup keeps the last entry for each (file, output) key, preserving the
// position of the first occurrence. Later entries represent more recent
// compilations and win.
func (d *Database) dedup(entries []Entry) []Entry {
	index := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := index[e.key()]; ok {
			out[i] = e
			continue
		}
		index[e.key()] = len(out)
		out = append(out, e)
	}
	return out
}

func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
