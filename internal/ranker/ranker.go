// Package ranker orders the members of a duplicate group so that the
// keep-one executor has a deterministic winner.
package ranker

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ivoronin/dupescout/internal/filters"
	"github.com/ivoronin/dupescout/internal/types"
)

// SortKey selects the within-class ordering.
type SortKey string

const (
	ShortestPath     SortKey = "shortest-path"
	ShortestFilename SortKey = "shortest-filename"
)

// ParseSortKey validates a sort key name.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case ShortestPath, ShortestFilename:
		return SortKey(s), nil
	}
	return "", types.Errorf(types.KindUsage, "invalid sort key %q (expected shortest-path or shortest-filename)", s)
}

// Ranker produces a total order within a duplicate group: files under a
// priority directory come first; within each class the sort key decides,
// with the full path as the final lexicographic tiebreak. The order is
// invariant under input permutation.
type Ranker struct {
	priorityDirs []string
	key          SortKey
}

// New creates a Ranker. An empty key defaults to shortest-path.
func New(priorityDirs []string, key SortKey) *Ranker {
	if key == "" {
		key = ShortestPath
	}
	return &Ranker{priorityDirs: priorityDirs, key: key}
}

// Rank sorts the group's members in place and returns them.
func (r *Ranker) Rank(g *types.DuplicateGroup) []*types.FileRecord {
	slices.SortFunc(g.Files, r.Compare)
	return g.Files
}

// Priority reports whether path has a priority directory as an ancestor.
func (r *Ranker) Priority(path string) bool {
	return filters.UnderAny(path, r.priorityDirs)
}

// Compare is the group comparator. It is a total order: the final
// comparison on the full path breaks every remaining tie, since paths
// in a valid scan are unique.
func (r *Ranker) Compare(a, b *types.FileRecord) int {
	ap, bp := r.Priority(a.Path), r.Priority(b.Path)
	if ap != bp {
		if ap {
			return -1
		}
		return 1
	}

	if r.key == ShortestFilename {
		if c := cmp.Compare(len(filepath.Base(a.Path)), len(filepath.Base(b.Path))); c != 0 {
			return c
		}
		if c := cmp.Compare(pathDepth(a.Path), pathDepth(b.Path)); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	}

	if c := cmp.Compare(pathDepth(a.Path), pathDepth(b.Path)); c != 0 {
		return c
	}
	if c := cmp.Compare(len(filepath.Base(a.Path)), len(filepath.Base(b.Path))); c != 0 {
		return c
	}
	return cmp.Compare(a.Path, b.Path)
}

// pathDepth counts path components.
func pathDepth(path string) int {
	return strings.Count(path, string(filepath.Separator))
}
