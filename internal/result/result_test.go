package result

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ivoronin/dupescout/internal/filters"
	"github.com/ivoronin/dupescout/internal/types"
)

func sampleArchive() *Archive {
	cfg := filters.New()
	cfg.MinSize = 1
	cfg.SetExtensions([]string{"txt", "jpg"})
	cfg.PriorityDirs = []string{"/t/sub1"}

	a := &types.FileRecord{Path: "/t/a.txt", Size: 5, ModTime: 1700000000}
	b := &types.FileRecord{Path: "/t/b.txt", Size: 5, ModTime: 1700000001}
	c := &types.FileRecord{Path: "/t/c.txt", Size: 5, ModTime: 1700000002}
	a.Digests.Front.Set(0xdeadbeefcafe0001)
	b.Digests.Front.Set(0xdeadbeefcafe0001)
	c.Digests.Front.Set(0x1111222233334444)

	scan := &types.ScanResult{Files: []*types.FileRecord{a, b, c}, TotalBytes: 15}
	dedup := &types.DedupResult{
		Mode:  types.ModeNormal,
		Boost: types.BoostSize,
		Groups: []*types.DuplicateGroup{
			{Size: 5, Mode: types.ModeNormal, Files: []*types.FileRecord{a, b}},
		},
	}
	return &Archive{Filters: cfg, Scan: scan, Dedup: dedup}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	var first bytes.Buffer
	if err := Save(&first, sampleArchive()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(bytes.NewReader(first.Bytes()))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Dedup.Mode != types.ModeNormal || loaded.Dedup.Boost != types.BoostSize {
		t.Errorf("mode/boost lost: %s/%s", loaded.Dedup.Mode, loaded.Dedup.Boost)
	}
	if len(loaded.Scan.Files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(loaded.Scan.Files))
	}
	if len(loaded.Dedup.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(loaded.Dedup.Groups))
	}

	g := loaded.Dedup.Groups[0]
	if g.Size != 5 || len(g.Files) != 2 {
		t.Errorf("group = size %d, %d members", g.Size, len(g.Files))
	}
	// Group members must be the same objects as the file list entries.
	if g.Files[0] != loaded.Scan.Files[0] || g.Files[1] != loaded.Scan.Files[1] {
		t.Error("group members are not references into the file list")
	}
	if !g.Files[0].Digests.Front.OK || g.Files[0].Digests.Front.Sum != 0xdeadbeefcafe0001 {
		t.Errorf("front digest lost: %+v", g.Files[0].Digests.Front)
	}
	if g.Files[0].Digests.Middle.OK {
		t.Error("empty slot must stay empty after load")
	}
	if g.Files[0].ModTime != 1700000000 {
		t.Errorf("mtime lost: %d", g.Files[0].ModTime)
	}

	// save(load(save(x))) is byte-identical.
	var second bytes.Buffer
	if err := Save(&second, loaded); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("round trip is not byte-identical")
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := Save(&a, sampleArchive()); err != nil {
		t.Fatal(err)
	}
	if err := Save(&b, sampleArchive()); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("identical state produced different JSON")
	}
}

func TestSaveDigestFormat(t *testing.T) {
	var buf bytes.Buffer
	if err := Save(&buf, sampleArchive()); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"front": "deadbeefcafe0001"`) {
		t.Errorf("digest not stored as 16 lowercase hex digits:\n%s", out)
	}
	if !strings.Contains(out, `"middle": null`) {
		t.Errorf("empty slot not stored as null:\n%s", out)
	}
	if !strings.Contains(out, `"schema": 1`) {
		t.Errorf("schema version missing:\n%s", out)
	}
}

func TestLoadRejectsBadJSON(t *testing.T) {
	_, err := Load(strings.NewReader("{not json"))
	if types.KindOf(err) != types.KindCorruptResult {
		t.Errorf("expected corrupt-result error, got %v", err)
	}
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	doc := `{"schema": 99, "filters": {"min_size": 1}, "mode": "normal", "boost": "size", "files": [], "groups": []}`
	_, err := Load(strings.NewReader(doc))
	if types.KindOf(err) != types.KindCorruptResult {
		t.Errorf("expected corrupt-result error, got %v", err)
	}
}

func TestLoadRejectsOutOfRangeMember(t *testing.T) {
	doc := `{
		"schema": 1,
		"filters": {"min_size": 1},
		"mode": "normal",
		"boost": "size",
		"files": [{"path": "/a", "size": 5, "mtime": null, "front": null, "middle": null, "end": null, "full": null}],
		"groups": [{"size": 5, "mode": "normal", "members": [0, 7]}]
	}`
	_, err := Load(strings.NewReader(doc))
	if types.KindOf(err) != types.KindCorruptResult {
		t.Errorf("expected corrupt-result error, got %v", err)
	}
}

func TestLoadRejectsSingletonGroup(t *testing.T) {
	doc := `{
		"schema": 1,
		"filters": {"min_size": 1},
		"mode": "normal",
		"boost": "size",
		"files": [{"path": "/a", "size": 5, "mtime": null, "front": null, "middle": null, "end": null, "full": null}],
		"groups": [{"size": 5, "mode": "normal", "members": [0]}]
	}`
	_, err := Load(strings.NewReader(doc))
	if types.KindOf(err) != types.KindCorruptResult {
		t.Errorf("expected corrupt-result error, got %v", err)
	}
}

func TestLoadRejectsBadDigest(t *testing.T) {
	doc := `{
		"schema": 1,
		"filters": {"min_size": 1},
		"mode": "normal",
		"boost": "size",
		"files": [{"path": "/a", "size": 5, "mtime": null, "front": "zzzz", "middle": null, "end": null, "full": null}],
		"groups": []
	}`
	_, err := Load(strings.NewReader(doc))
	if types.KindOf(err) != types.KindCorruptResult {
		t.Errorf("expected corrupt-result error, got %v", err)
	}
}
