// Package hasher computes bounded-range xxh64 digests of files.
//
// The digest algorithm (xxh64) and the chunk size below are part of the
// on-disk contract: saved results store these digests as hex strings and
// must remain comparable across versions.
package hasher

import (
	"io"
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/ivoronin/dupescout/internal/cache"
	"github.com/ivoronin/dupescout/internal/types"
)

const (
	// Chunk is the range size for the front, middle and end readers.
	// Pinned at 128 KiB; earlier iterations of the format used 64 KiB,
	// results saved by those are not comparable.
	Chunk = 128 * 1024

	// blockSize is the read buffer size (64KB)
	blockSize = 64 * 1024
)

// OpenFunc opens a file for reading. Injected so tests and embedders
// can substitute the filesystem.
type OpenFunc func(path string) (io.ReadSeekCloser, error)

// DefaultOpen opens files via the OS.
func DefaultOpen(path string) (io.ReadSeekCloser, error) {
	return os.Open(path)
}

// Hasher computes range digests for FileRecords, filling their digest
// slots and consulting the optional persistent cache.
//
// Methods are safe for concurrent use across distinct records; callers
// must not hash the same record from two goroutines.
type Hasher struct {
	open  OpenFunc
	cache *cache.Cache
}

// New creates a Hasher. open may be nil for the OS default; c may be
// nil for no caching.
func New(open OpenFunc, c *cache.Cache) *Hasher {
	if open == nil {
		open = DefaultOpen
	}
	return &Hasher{open: open, cache: c}
}

// Front digests the first min(size, Chunk) bytes, filling the front slot.
func (h *Hasher) Front(f *types.FileRecord) (uint64, error) {
	if f.Digests.Front.OK {
		return f.Digests.Front.Sum, nil
	}
	sum, err := h.rangeSum(f, 0, min(f.Size, Chunk))
	if err != nil {
		return 0, err
	}
	f.Digests.Front.Set(sum)
	return sum, nil
}

// Middle digests min(size, Chunk) bytes centered in the file, filling
// the middle slot.
func (h *Hasher) Middle(f *types.FileRecord) (uint64, error) {
	if f.Digests.Middle.OK {
		return f.Digests.Middle.Sum, nil
	}
	length := min(f.Size, Chunk)
	start := max(int64(0), f.Size/2-Chunk/2)
	sum, err := h.rangeSum(f, start, length)
	if err != nil {
		return 0, err
	}
	f.Digests.Middle.Set(sum)
	return sum, nil
}

// End digests the last min(size, Chunk) bytes, filling the end slot.
func (h *Hasher) End(f *types.FileRecord) (uint64, error) {
	if f.Digests.End.OK {
		return f.Digests.End.Sum, nil
	}
	length := min(f.Size, Chunk)
	sum, err := h.rangeSum(f, f.Size-length, length)
	if err != nil {
		return 0, err
	}
	f.Digests.End.Set(sum)
	return sum, nil
}

// Full digests the entire file, streamed in blocks, filling the full
// slot. Callers short-circuit files no larger than Chunk - for those
// the front digest already covers every byte.
func (h *Hasher) Full(f *types.FileRecord) (uint64, error) {
	if f.Digests.Full.OK {
		return f.Digests.Full.Sum, nil
	}
	sum, err := h.rangeSum(f, 0, f.Size)
	if err != nil {
		return 0, err
	}
	f.Digests.Full.Set(sum)
	return sum, nil
}

// rangeSum returns the digest of a byte range, from cache when possible.
func (h *Hasher) rangeSum(f *types.FileRecord, start, length int64) (uint64, error) {
	if h.cache != nil {
		if sum, found, err := h.cache.Lookup(f, start, length); err == nil && found {
			return sum, nil
		}
		// Lookup errors fall through to computation
	}

	sum, err := h.readRange(f.Path, start, length)
	if err != nil {
		return 0, types.WrapError(types.KindHash, f.Path, err)
	}

	if h.cache != nil {
		_ = h.cache.Store(f, start, length, sum)
	}
	return sum, nil
}

// readRange hashes length bytes starting at start.
// The handle is closed before returning.
func (h *Hasher) readRange(path string, start, length int64) (uint64, error) {
	r, err := h.open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	if start > 0 {
		if _, err := r.Seek(start, io.SeekStart); err != nil {
			return 0, err
		}
	}

	d := xxhash.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(d, io.LimitReader(r, length), buf); err != nil {
		return 0, err
	}
	return d.Sum64(), nil
}
