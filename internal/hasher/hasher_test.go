package hasher

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"

	"github.com/ivoronin/dupescout/internal/types"
)

// writeFile creates a file and returns its record.
func writeFile(t *testing.T, dir, name string, data []byte) *types.FileRecord {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return &types.FileRecord{Path: path, Size: int64(len(data))}
}

// pattern produces n deterministic non-repeating-ish bytes.
func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	return data
}

func TestFrontMatchesDirectSum(t *testing.T) {
	dir := t.TempDir()
	data := pattern(3 * Chunk)
	f := writeFile(t, dir, "a.bin", data)

	h := New(nil, nil)
	sum, err := h.Front(f)
	if err != nil {
		t.Fatalf("Front: %v", err)
	}
	if want := xxhash.Sum64(data[:Chunk]); sum != want {
		t.Errorf("Front = %016x, want %016x", sum, want)
	}
	if !f.Digests.Front.OK || f.Digests.Front.Sum != sum {
		t.Error("front slot not filled")
	}
}

func TestMiddleRange(t *testing.T) {
	dir := t.TempDir()
	size := 300000 // larger than Chunk, not a multiple
	data := pattern(size)
	f := writeFile(t, dir, "a.bin", data)

	h := New(nil, nil)
	sum, err := h.Middle(f)
	if err != nil {
		t.Fatalf("Middle: %v", err)
	}
	start := size/2 - Chunk/2
	if want := xxhash.Sum64(data[start : start+Chunk]); sum != want {
		t.Errorf("Middle = %016x, want %016x", sum, want)
	}
}

func TestEndRange(t *testing.T) {
	dir := t.TempDir()
	data := pattern(3*Chunk + 17)
	f := writeFile(t, dir, "a.bin", data)

	h := New(nil, nil)
	sum, err := h.End(f)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if want := xxhash.Sum64(data[len(data)-Chunk:]); sum != want {
		t.Errorf("End = %016x, want %016x", sum, want)
	}
}

func TestSmallFileFrontEqualsFull(t *testing.T) {
	dir := t.TempDir()
	data := pattern(Chunk) // exactly one chunk
	f := writeFile(t, dir, "small.bin", data)
	g := writeFile(t, dir, "small2.bin", data)

	h := New(nil, nil)
	front, err := h.Front(f)
	if err != nil {
		t.Fatalf("Front: %v", err)
	}
	full, err := h.Full(g)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if front != full {
		t.Errorf("front %016x != full %016x for size == Chunk", front, full)
	}

	end, err := h.End(g)
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	if end != front {
		t.Errorf("end %016x != front %016x for size == Chunk", end, front)
	}
}

func TestFullStreamsWholeFile(t *testing.T) {
	dir := t.TempDir()
	data := pattern(5*Chunk + 3)
	f := writeFile(t, dir, "big.bin", data)

	h := New(nil, nil)
	sum, err := h.Full(f)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if want := xxhash.Sum64(data); sum != want {
		t.Errorf("Full = %016x, want %016x", sum, want)
	}
}

func TestZeroByteFile(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "empty", nil)

	h := New(nil, nil)
	sum, err := h.Front(f)
	if err != nil {
		t.Fatalf("Front: %v", err)
	}
	if want := xxhash.Sum64(nil); sum != want {
		t.Errorf("Front(empty) = %016x, want digest of no bytes %016x", sum, want)
	}
}

// countingOpen wraps the default opener and counts calls.
type countingOpen struct {
	opens int
}

func (c *countingOpen) open(path string) (io.ReadSeekCloser, error) {
	c.opens++
	return os.Open(path)
}

func TestSlotsComputedOnce(t *testing.T) {
	dir := t.TempDir()
	f := writeFile(t, dir, "a.bin", pattern(10))

	co := &countingOpen{}
	h := New(co.open, nil)

	first, err := h.Front(f)
	if err != nil {
		t.Fatalf("Front: %v", err)
	}
	second, err := h.Front(f)
	if err != nil {
		t.Fatalf("Front again: %v", err)
	}
	if first != second {
		t.Errorf("repeated Front disagrees: %016x vs %016x", first, second)
	}
	if co.opens != 1 {
		t.Errorf("expected 1 open, got %d", co.opens)
	}
}

func TestReadErrorIsHashKind(t *testing.T) {
	failing := func(string) (io.ReadSeekCloser, error) {
		return nil, errors.New("injected failure")
	}
	h := New(failing, nil)

	f := &types.FileRecord{Path: "/nonexistent", Size: 10}
	if _, err := h.Front(f); types.KindOf(err) != types.KindHash {
		t.Errorf("expected hash-kind error, got %v", err)
	}
	if f.Digests.Front.OK {
		t.Error("slot must stay empty after a failed read")
	}
}

func TestIdenticalContentIdenticalDigests(t *testing.T) {
	dir := t.TempDir()
	data := bytes.Repeat([]byte{0xAB}, 2*Chunk)
	a := writeFile(t, dir, "a", data)
	b := writeFile(t, dir, "b", data)

	h := New(nil, nil)
	for _, fn := range []func(*types.FileRecord) (uint64, error){h.Front, h.Middle, h.End, h.Full} {
		sa, err := fn(a)
		if err != nil {
			t.Fatal(err)
		}
		sb, err := fn(b)
		if err != nil {
			t.Fatal(err)
		}
		if sa != sb {
			t.Errorf("identical files produced different digests: %016x vs %016x", sa, sb)
		}
	}
}
