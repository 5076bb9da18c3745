// Package filters holds the file selection predicates applied during
// scanning and the directory sets that shape ranking.
package filters

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/ivoronin/dupescout/internal/types"
)

// Config enumerates the filter parameters. The zero value (after New)
// accepts every regular file of at least one byte.
type Config struct {
	MinSize      int64               // Reject files strictly smaller. Default 1.
	MaxSize      int64               // Reject files strictly larger. 0 = unbounded.
	Extensions   map[string]struct{} // Lowercased suffixes without dot. Empty = all.
	ExcludedDirs []string            // Absolute paths; subtrees are not descended into.
	PriorityDirs []string            // Absolute paths; affects ranking only.
}

// New returns a Config with defaults applied.
func New() *Config {
	return &Config{MinSize: 1}
}

// Validate checks that configured directory paths are absolute.
func (c *Config) Validate() error {
	if c.MinSize < 0 {
		return types.Errorf(types.KindUsage, "min size must not be negative")
	}
	if c.MaxSize > 0 && c.MaxSize < c.MinSize {
		return types.Errorf(types.KindUsage, "max size %d is smaller than min size %d", c.MaxSize, c.MinSize)
	}
	for _, d := range append(append([]string{}, c.ExcludedDirs...), c.PriorityDirs...) {
		if !filepath.IsAbs(d) {
			return types.Errorf(types.KindUsage, "directory %q must be absolute", d)
		}
	}
	return nil
}

// SetExtensions normalizes and installs an extension set. Entries may
// carry a leading dot; matching is case-insensitive.
func (c *Config) SetExtensions(exts []string) {
	if len(exts) == 0 {
		c.Extensions = nil
		return
	}
	c.Extensions = make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e != "" {
			c.Extensions[e] = struct{}{}
		}
	}
}

// ExtensionList returns the extension set as a sorted slice, for
// serialization and display.
func (c *Config) ExtensionList() []string {
	if len(c.Extensions) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Extensions))
	for e := range c.Extensions {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Match reports whether a regular file at path with the given size
// passes the size and extension predicates. The result is total: every
// candidate is either kept or rejected, never an error.
func (c *Config) Match(path string, size int64) bool {
	if size < c.MinSize {
		return false
	}
	if c.MaxSize > 0 && size > c.MaxSize {
		return false
	}
	if len(c.Extensions) == 0 {
		return true
	}
	ext := Extension(path)
	if ext == "" {
		return false // Files lacking an extension match only the empty set
	}
	_, ok := c.Extensions[ext]
	return ok
}

// Excluded reports whether path lies under (or is) any excluded
// directory. The scanner uses it both to reject files and to avoid
// descending into excluded subtrees.
func (c *Config) Excluded(path string) bool {
	return UnderAny(path, c.ExcludedDirs)
}

// Priority reports whether path lies under any priority directory.
func (c *Config) Priority(path string) bool {
	return UnderAny(path, c.PriorityDirs)
}

// Extension returns the final dotted component of the basename,
// lowercased and without the dot, or "" when there is none.
func Extension(path string) string {
	ext := filepath.Ext(filepath.Base(path))
	if ext == "" || ext == "." {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// UnderAny reports whether any dir in dirs is path itself or an
// ancestor of path.
func UnderAny(path string, dirs []string) bool {
	for _, d := range dirs {
		d = strings.TrimRight(d, string(filepath.Separator))
		if d == "" {
			continue
		}
		if path == d || strings.HasPrefix(path, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
