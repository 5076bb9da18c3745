package keeper

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ivoronin/dupescout/internal/progress"
	"github.com/ivoronin/dupescout/internal/ranker"
	"github.com/ivoronin/dupescout/internal/types"
)

// fakeTrash records moved paths and fails for configured ones.
type fakeTrash struct {
	moved []string
	fail  map[string]bool
}

func (ft *fakeTrash) move(path string) error {
	if ft.fail[path] {
		return errors.New("device busy")
	}
	ft.moved = append(ft.moved, path)
	return nil
}

func makeResult(groups ...*types.DuplicateGroup) *types.DedupResult {
	return &types.DedupResult{Mode: types.ModeNormal, Boost: types.BoostSize, Groups: groups}
}

func group(size int64, paths ...string) *types.DuplicateGroup {
	g := &types.DuplicateGroup{Size: size, Mode: types.ModeNormal}
	for _, p := range paths {
		g.Files = append(g.Files, &types.FileRecord{Path: p, Size: size})
	}
	return g
}

func TestKeepOnePriorityWinnerSurvives(t *testing.T) {
	result := makeResult(group(100,
		"/t/sub2/pic.jpg",
		"/t/sub1/pic.jpg",
		"/t/sub2/pic_copy.jpg",
	))

	ft := &fakeTrash{}
	rk := ranker.New([]string{"/t/sub1"}, ranker.ShortestPath)

	outcome, rebuilt := New(ft.move, rk, nil, nil).Run(result)

	if outcome.Moved != 2 || outcome.Failed != 0 {
		t.Fatalf("outcome = %+v, want 2 moved, 0 failed", outcome)
	}
	wantMoved := []string{"/t/sub2/pic.jpg", "/t/sub2/pic_copy.jpg"}
	slices.Sort(ft.moved)
	if !slices.Equal(ft.moved, wantMoved) {
		t.Errorf("moved = %v, want %v", ft.moved, wantMoved)
	}
	// The group is down to one member and disappears from display.
	if len(rebuilt.Groups) != 0 {
		t.Errorf("rebuilt groups = %v, want none", rebuilt.Groups)
	}
}

func TestKeepOneFailureLeavesFileAndContinues(t *testing.T) {
	result := makeResult(group(50, "/t/a", "/t/b", "/t/c"))

	ft := &fakeTrash{fail: map[string]bool{"/t/b": true}}
	rk := ranker.New(nil, ranker.ShortestPath)

	var warned int
	sink := progress.Sink(func(e progress.Event) {
		if _, ok := e.(progress.Warning); ok {
			warned++
		}
	})

	outcome, rebuilt := New(ft.move, rk, sink, nil).Run(result)

	if outcome.Moved != 1 || outcome.Failed != 1 {
		t.Fatalf("outcome = %+v, want 1 moved, 1 failed", outcome)
	}
	if len(outcome.Failures) != 1 || outcome.Failures[0].Path != "/t/b" {
		t.Errorf("failures = %v", outcome.Failures)
	}
	if warned != 1 {
		t.Errorf("expected 1 warning, got %d", warned)
	}
	// Winner plus the stuck file survive as a displayable group.
	if len(rebuilt.Groups) != 1 || len(rebuilt.Groups[0].Files) != 2 {
		t.Fatalf("rebuilt = %v, want one group of two", rebuilt.Groups)
	}
}

func TestKeepOneMultipleGroups(t *testing.T) {
	result := makeResult(
		group(100, "/t/a1", "/t/a2"),
		group(200, "/t/b1", "/t/b2", "/t/b3"),
	)

	ft := &fakeTrash{}
	rk := ranker.New(nil, ranker.ShortestPath)

	outcome, rebuilt := New(ft.move, rk, nil, nil).Run(result)

	if outcome.Moved != 3 {
		t.Errorf("moved = %d, want 3", outcome.Moved)
	}
	if len(rebuilt.Groups) != 0 {
		t.Errorf("all groups should reduce to a single member, got %v", rebuilt.Groups)
	}
}

func TestKeepOneCancelledBeforeStart(t *testing.T) {
	result := makeResult(group(100, "/t/a", "/t/b"))

	stop := &progress.StopToken{}
	stop.Stop()

	ft := &fakeTrash{}
	rk := ranker.New(nil, ranker.ShortestPath)

	outcome, rebuilt := New(ft.move, rk, nil, stop).Run(result)

	if !outcome.Cancelled {
		t.Error("expected cancelled outcome")
	}
	if len(ft.moved) != 0 {
		t.Errorf("nothing may move after cancellation, moved %v", ft.moved)
	}
	if len(rebuilt.Groups) != 1 {
		t.Errorf("untouched group must survive, got %v", rebuilt.Groups)
	}
	if !rebuilt.Partial {
		t.Error("rebuilt result must be partial after cancellation")
	}
}

func TestReverifyDropsChangedFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(data), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	a := write("a", "12345")
	b := write("b", "12345")
	c := write("c", "123456789") // size changed since the (synthetic) scan
	gone := filepath.Join(dir, "gone")

	result := makeResult(group(5, a, b, c, gone))

	clean := Reverify(result, nil)

	if len(clean.Groups) != 1 {
		t.Fatalf("expected one surviving group, got %v", clean.Groups)
	}
	got := []string{clean.Groups[0].Files[0].Path, clean.Groups[0].Files[1].Path}
	slices.Sort(got)
	if !slices.Equal(got, []string{a, b}) {
		t.Errorf("survivors = %v, want [%s %s]", got, a, b)
	}
}

func TestReverifyDropsCollapsedGroups(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	if err := os.WriteFile(a, []byte("12345"), 0o600); err != nil {
		t.Fatal(err)
	}

	result := makeResult(group(5, a, filepath.Join(dir, "vanished")))

	clean := Reverify(result, nil)
	if len(clean.Groups) != 0 {
		t.Errorf("group with one survivor must be dropped, got %v", clean.Groups)
	}
}
