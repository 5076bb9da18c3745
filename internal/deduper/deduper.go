// Package deduper proves duplicate groups through staged content hashing.
//
// # Overview
//
// The deduper takes the scanner's file records and narrows them to
// groups of byte-identical files while reading as little of each file
// as possible. Identical files must survive every stage; files that
// collide on a prefix are separated by a later stage.
//
// # Processing Pipeline
//
//	Input: []*types.FileRecord (all scanned files)
//	    │
//	    ├──► Stage 0: boost grouping (size or size+name keys, no I/O)
//	    │
//	    ├──► Stage 1: front digest, regroup            (all modes)
//	    │
//	    ├──► Stage 2: middle digest, regroup           (normal, full)
//	    │
//	    ├──► Stage 3a: end digest, regroup             (normal)
//	    ├──► Stage 3b: full digest, regroup            (full)
//	    │
//	    └──► Output: *types.DedupResult, groups sorted by recoverable bytes
//
// Singletons are dropped after every stage. Fast mode stops after the
// front digest and is a probabilistic filter: files identical in their
// first chunk but different later are reported as duplicates.
//
// # Concurrency Model
//
// Stages are globally ordered - no file enters stage N+1 until stage N
// finished for every survivor. Within a stage, files are hashed by a
// bounded worker pool (semaphore-limited goroutines); item order is
// unspecified. Each stage produces a fresh group container consumed by
// the next, so there is no in-place mutation during a stage.
//
// # Cancellation
//
// The stop token is polled before each stage and before each file's
// work item. Already-started reads run to completion. On cancellation
// the result holds the groups proven by the last fully-finished stage,
// marked partial.
package deduper

import (
	"cmp"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ivoronin/dupescout/internal/grouper"
	"github.com/ivoronin/dupescout/internal/hasher"
	"github.com/ivoronin/dupescout/internal/progress"
	"github.com/ivoronin/dupescout/internal/types"
)

// maxDefaultWorkers caps the default pool size on large machines; the
// stages are I/O bound and more readers than this just thrash seeks.
const maxDefaultWorkers = 8

// Options configures a dedup run. Zero values select the defaults.
type Options struct {
	Mode    types.Mode  // Default normal
	Boost   types.Boost // Default size
	Workers int         // Default min(NumCPU, 8)
	Hasher  *hasher.Hasher
	Sink    progress.Sink
	Stop    *progress.StopToken
}

// DefaultWorkers returns the default hashing parallelism.
func DefaultWorkers() int {
	return min(runtime.NumCPU(), maxDefaultWorkers)
}

// Deduper sequences the hashing stages over a scanned file set.
//
// The deduper is designed for single-use: create with New(), call Run() once.
type Deduper struct {
	// Config (immutable, set by New)
	files   []*types.FileRecord
	mode    types.Mode
	boost   types.Boost
	workers int
	hasher  *hasher.Hasher
	sink    progress.Sink
	stop    *progress.StopToken
}

// New creates a Deduper over the given files.
func New(files []*types.FileRecord, opts Options) *Deduper {
	if opts.Mode == "" {
		opts.Mode = types.ModeNormal
	}
	if opts.Boost == "" {
		opts.Boost = types.BoostSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.Hasher == nil {
		opts.Hasher = hasher.New(nil, nil)
	}
	return &Deduper{
		files:   files,
		mode:    opts.Mode,
		boost:   opts.Boost,
		workers: opts.Workers,
		hasher:  opts.Hasher,
		sink:    opts.Sink,
		stop:    opts.Stop,
	}
}

// stage describes one round of hash-all-survivors / regroup / drop-singletons.
type stage struct {
	name string
	// skip reports that a group of this member size passes through the
	// stage untouched, with no digest computed for it.
	skip func(size int64) bool
	hash func(*types.FileRecord) (uint64, error)
	slot func(*types.FileRecord) types.DigestSlot
}

// plan returns the hash stages for the configured mode.
func (d *Deduper) plan() []stage {
	front := stage{
		name: "front",
		skip: func(int64) bool { return false },
		hash: d.hasher.Front,
		slot: func(f *types.FileRecord) types.DigestSlot { return f.Digests.Front },
	}
	middle := stage{
		name: "middle",
		skip: func(size int64) bool { return size <= hasher.Chunk },
		hash: d.hasher.Middle,
		slot: func(f *types.FileRecord) types.DigestSlot { return f.Digests.Middle },
	}
	end := stage{
		name: "end",
		skip: func(size int64) bool { return size <= 2*hasher.Chunk },
		hash: d.hasher.End,
		slot: func(f *types.FileRecord) types.DigestSlot { return f.Digests.End },
	}
	full := stage{
		name: "full",
		skip: func(size int64) bool { return size <= hasher.Chunk },
		hash: d.hasher.Full,
		slot: func(f *types.FileRecord) types.DigestSlot { return f.Digests.Full },
	}

	switch d.mode {
	case types.ModeFast:
		return []stage{front}
	case types.ModeFull:
		return []stage{front, middle, full}
	default:
		return []stage{front, middle, end}
	}
}

// Run executes the pipeline and returns the duplicate groups.
// On cancellation the returned result is marked partial and err is
// types.ErrCancelled.
func (d *Deduper) Run() (*types.DedupResult, error) {
	result := &types.DedupResult{Mode: d.mode, Boost: d.boost}

	groups := d.boostGroups()

	for _, st := range d.plan() {
		next, err := d.runStage(st, groups)
		if err != nil {
			result.Groups = finalize(groups, d.mode)
			result.Partial = true
			return result, err
		}
		groups = next
	}

	result.Groups = finalize(groups, d.mode)
	return result, nil
}

// runStage hashes every member of every non-skipped group in parallel,
// then regroups each bucket by the new digest and drops singletons.
// Files whose read failed are demoted to singletons (their slot stays
// empty) and reported as warnings.
func (d *Deduper) runStage(st stage, groups [][]*types.FileRecord) ([][]*types.FileRecord, error) {
	if d.stop.Stopped() {
		return nil, types.ErrCancelled
	}

	var work []*types.FileRecord
	for _, g := range groups {
		if !st.skip(g[0].Size) {
			work = append(work, g...)
		}
	}

	total := int64(len(work))
	emitEvery := max(int64(1), total/200)

	var (
		wg        sync.WaitGroup
		done      atomic.Int64
		cancelled atomic.Bool
	)
	sem := types.NewSemaphore(d.workers)

	for _, f := range work {
		wg.Add(1)
		go func(f *types.FileRecord) {
			defer wg.Done()
			sem.Acquire()
			defer sem.Release()

			if d.stop.Stopped() {
				cancelled.Store(true)
				return
			}

			if _, err := st.hash(f); err != nil {
				d.sink.Emit(progress.Warning{Path: f.Path, Message: err.Error()})
			}

			if n := done.Add(1); n%emitEvery == 0 || n == total {
				d.sink.Emit(progress.StageProgress{Stage: st.name, Done: n, Total: total})
			}
		}(f)
	}
	wg.Wait()

	if cancelled.Load() {
		return nil, types.ErrCancelled
	}

	next := make([][]*types.FileRecord, 0, len(groups))
	for _, g := range groups {
		if st.skip(g[0].Size) {
			next = append(next, g)
			continue
		}

		survivors := make([]*types.FileRecord, 0, len(g))
		for _, f := range g {
			if st.slot(f).OK {
				survivors = append(survivors, f)
			}
		}

		next = append(next, grouper.Group(survivors, func(f *types.FileRecord) uint64 {
			return st.slot(f).Sum
		})...)
	}
	return next, nil
}

// finalize converts raw buckets into sorted DuplicateGroups: members
// ordered by path, groups by recoverable bytes descending, then member
// size descending, then smallest member path for determinism.
func finalize(groups [][]*types.FileRecord, mode types.Mode) []*types.DuplicateGroup {
	out := make([]*types.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		if len(g) < 2 {
			continue
		}
		files := slices.Clone(g)
		slices.SortFunc(files, func(a, b *types.FileRecord) int {
			return cmp.Compare(a.Path, b.Path)
		})
		out = append(out, &types.DuplicateGroup{
			Size:  files[0].Size,
			Mode:  mode,
			Files: files,
		})
	}

	slices.SortFunc(out, func(a, b *types.DuplicateGroup) int {
		if c := cmp.Compare(b.RecoverableBytes(), a.RecoverableBytes()); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Size, a.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Files[0].Path, b.Files[0].Path)
	})
	return out
}
