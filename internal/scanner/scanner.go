// Package scanner discovers regular files under a root directory.
//
// The walk is recursive and single-threaded - directory listing is not
// the bottleneck of the pipeline, the hashing stages are, and a serial
// walk keeps emission order deterministic for a given filesystem state.
// Parallelism lives in the deduper's worker pool.
//
// Symbolic links to files are followed exactly once per inode (tracked
// in a visited-inode set held only during the scan); symbolic links to
// directories are not followed, which keeps the path graph a tree and
// rules out cycles.
package scanner

import (
	"os"
	"path/filepath"

	"github.com/ivoronin/dupescout/internal/filters"
	"github.com/ivoronin/dupescout/internal/progress"
	"github.com/ivoronin/dupescout/internal/types"
)

// scanProgressEvery is the counter interval between ScanProgress events.
// A counter-mod check instead of a timer keeps the hot loop cheap while
// bounding the event rate well below what any sink cares about.
const scanProgressEvery = 128

// ReadDirFunc lists a directory. Injected so tests and embedders can
// substitute the filesystem.
type ReadDirFunc func(path string) ([]os.DirEntry, error)

// Scanner walks a root path and emits FileRecords passing the filter.
//
// The scanner is designed for single-use: create with New(), call Run() once.
type Scanner struct {
	// Config (immutable, set by New)
	root    string
	filter  *filters.Config
	sink    progress.Sink
	stop    *progress.StopToken
	readDir ReadDirFunc

	// Runtime (initialized in Run)
	seenInodes map[uint64]struct{}
	filesSeen  int64
	result     *types.ScanResult
}

// New creates a Scanner rooted at root. filter must be non-nil; sink
// and stop may be nil.
func New(root string, filter *filters.Config, sink progress.Sink, stop *progress.StopToken) *Scanner {
	return &Scanner{
		root:    root,
		filter:  filter,
		sink:    sink,
		stop:    stop,
		readDir: os.ReadDir,
	}
}

// SetReadDir overrides directory listing, for tests.
func (s *Scanner) SetReadDir(fn ReadDirFunc) { s.readDir = fn }

// Run executes the scan. On cancellation it returns the records
// collected so far together with types.ErrCancelled.
func (s *Scanner) Run() (*types.ScanResult, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return nil, types.WrapError(types.KindUsage, s.root, err)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, types.WrapError(types.KindUsage, root, err)
	}
	if !info.IsDir() {
		return nil, types.Errorf(types.KindUsage, "%s: not a directory", root)
	}

	s.seenInodes = make(map[uint64]struct{})
	s.result = &types.ScanResult{Root: root}

	// An excluded root yields an empty scan, not an error.
	var walkErr error
	if !s.filter.Excluded(root) {
		walkErr = s.walk(root)
	}

	s.sink.Emit(progress.ScanProgress{FilesSeen: s.filesSeen})
	return s.result, walkErr
}

// walk processes one directory and recurses into its subdirectories.
// Cancellation is polled once per directory boundary.
func (s *Scanner) walk(dir string) error {
	if s.stop.Stopped() {
		return types.ErrCancelled
	}

	entries, err := s.readDir(dir)
	if err != nil {
		// Permission and read errors skip the directory, never abort.
		s.result.Skipped++
		s.sink.Emit(progress.Warning{Path: dir, Message: err.Error()})
		return nil
	}

	var subdirs []string
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())

		switch {
		case entry.IsDir():
			if !s.filter.Excluded(full) {
				subdirs = append(subdirs, full)
			}
		case entry.Type()&os.ModeSymlink != 0:
			s.processSymlink(full)
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				s.result.Skipped++
				s.sink.Emit(progress.Warning{Path: full, Message: err.Error()})
				continue
			}
			s.record(full, info)
		}
		// Devices, sockets, fifos are skipped silently.
	}

	for _, sub := range subdirs {
		if err := s.walk(sub); err != nil {
			return err
		}
	}
	return nil
}

// processSymlink follows a symlink once. Links to regular files are
// recorded under their resolved target path; links to directories are
// not followed.
func (s *Scanner) processSymlink(path string) {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		s.result.Skipped++
		s.sink.Emit(progress.Warning{Path: path, Message: err.Error()})
		return
	}
	info, err := os.Stat(target)
	if err != nil {
		s.result.Skipped++
		s.sink.Emit(progress.Warning{Path: path, Message: err.Error()})
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	if s.filter.Excluded(target) {
		return
	}
	s.record(target, info)
}

// record counts a discovered regular file and keeps it when it passes
// the filter predicate. Each inode is recorded at most once.
func (s *Scanner) record(path string, info os.FileInfo) {
	s.filesSeen++
	if s.filesSeen%scanProgressEvery == 0 {
		s.sink.Emit(progress.ScanProgress{FilesSeen: s.filesSeen})
	}

	ino := inodeOf(info)
	if ino != 0 {
		if _, dup := s.seenInodes[ino]; dup {
			return
		}
		s.seenInodes[ino] = struct{}{}
	}

	if !s.filter.Match(path, info.Size()) {
		return
	}

	s.result.Files = append(s.result.Files, &types.FileRecord{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().Unix(),
		Ino:     ino,
	})
	s.result.TotalBytes += info.Size()
}
