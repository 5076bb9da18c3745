// Package keeper executes the destructive half of the pipeline: keep
// the first-ranked member of each duplicate group, move the rest to the
// operating-system trash.
//
// The trash operation is an injected function, keeping the package free
// of OS coupling; the CLI wires in internal/trash, tests wire in fakes.
package keeper

import (
	"os"

	"github.com/ivoronin/dupescout/internal/progress"
	"github.com/ivoronin/dupescout/internal/ranker"
	"github.com/ivoronin/dupescout/internal/types"
)

// TrashFunc moves a file to the trash. It is the unit of atomicity:
// the executor never cancels inside a call, only between files.
type TrashFunc func(path string) error

// Failure records one file that could not be moved.
type Failure struct {
	Path   string
	Reason string
}

// Outcome aggregates per-file results of a keep-one run.
type Outcome struct {
	Moved     int
	Failed    int
	Failures  []Failure
	Cancelled bool
}

// Executor applies the ranker and trashes non-winners.
//
// The executor is designed for single-use: create with New(), call Run() once.
type Executor struct {
	trash  TrashFunc
	ranker *ranker.Ranker
	sink   progress.Sink
	stop   *progress.StopToken
}

// New creates an Executor. trash and rk must be non-nil; sink and stop
// may be nil.
func New(trash TrashFunc, rk *ranker.Ranker, sink progress.Sink, stop *progress.StopToken) *Executor {
	return &Executor{trash: trash, ranker: rk, sink: sink, stop: stop}
}

// Run ranks each group, keeps the first member and moves every other
// member to the trash. A failed move leaves the file in place and is
// reported; remaining deletions continue. The returned DedupResult is
// rebuilt with surviving members; groups reduced to a single member are
// discarded.
func (e *Executor) Run(result *types.DedupResult) (*Outcome, *types.DedupResult) {
	out := &Outcome{}
	var survivors []*types.DuplicateGroup

	for gi, g := range result.Groups {
		if e.stop.Stopped() {
			// Untouched groups survive as-is.
			out.Cancelled = true
			survivors = append(survivors, result.Groups[gi:]...)
			break
		}

		e.ranker.Rank(g)
		kept := []*types.FileRecord{g.Files[0]}

		for fi, f := range g.Files[1:] {
			if e.stop.Stopped() {
				out.Cancelled = true
				kept = append(kept, g.Files[1+fi:]...)
				break
			}

			if err := e.trash(f.Path); err != nil {
				out.Failed++
				out.Failures = append(out.Failures, Failure{Path: f.Path, Reason: err.Error()})
				e.sink.Emit(progress.Warning{Path: f.Path, Message: err.Error()})
				kept = append(kept, f)
				continue
			}
			out.Moved++
		}

		if len(kept) >= 2 {
			survivors = append(survivors, &types.DuplicateGroup{
				Size:  g.Size,
				Mode:  g.Mode,
				Files: kept,
			})
		}
	}

	rebuilt := &types.DedupResult{
		Mode:    result.Mode,
		Boost:   result.Boost,
		Groups:  survivors,
		Partial: result.Partial || out.Cancelled,
	}
	return out, rebuilt
}

// Reverify stats every member and drops those whose size no longer
// matches the group (or that vanished), removing groups left with a
// single member. Required before acting on results loaded from disk -
// stored fingerprints are trusted for display only.
func Reverify(result *types.DedupResult, sink progress.Sink) *types.DedupResult {
	var groups []*types.DuplicateGroup
	for _, g := range result.Groups {
		kept := make([]*types.FileRecord, 0, len(g.Files))
		for _, f := range g.Files {
			info, err := os.Stat(f.Path)
			if err != nil {
				sink.Emit(progress.Warning{Path: f.Path, Message: err.Error()})
				continue
			}
			if info.Size() != g.Size {
				sink.Emit(progress.Warning{Path: f.Path, Message: "size changed since scan"})
				continue
			}
			kept = append(kept, f)
		}
		if len(kept) >= 2 {
			groups = append(groups, &types.DuplicateGroup{Size: g.Size, Mode: g.Mode, Files: kept})
		}
	}
	return &types.DedupResult{
		Mode:    result.Mode,
		Boost:   result.Boost,
		Groups:  groups,
		Partial: result.Partial,
	}
}
