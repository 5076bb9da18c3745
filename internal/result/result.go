// Package result persists scan and dedup state as versioned JSON.
//
// Digests are stored as lowercase 16-hex-digit strings (or null for
// empty slots); groups reference files by 0-based index into the file
// list. Loaded fingerprints are trusted for display only - destructive
// actions re-verify sizes and re-hash when modes differ.
package result

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ivoronin/dupescout/internal/filters"
	"github.com/ivoronin/dupescout/internal/types"
)

// SchemaVersion is bumped on any incompatible change to the document
// layout or the digest contract.
const SchemaVersion = 1

// Archive bundles everything a saved run contains.
type Archive struct {
	Filters *filters.Config
	Scan    *types.ScanResult
	Dedup   *types.DedupResult
}

type document struct {
	Schema  int         `json:"schema"`
	Filters filtersDoc  `json:"filters"`
	Mode    string      `json:"mode"`
	Boost   string      `json:"boost"`
	Partial bool        `json:"partial,omitempty"`
	Files   []fileDoc   `json:"files"`
	Groups  []groupDoc  `json:"groups"`
}

type filtersDoc struct {
	MinSize      int64    `json:"min_size"`
	MaxSize      int64    `json:"max_size,omitempty"`
	Extensions   []string `json:"extensions,omitempty"`
	ExcludedDirs []string `json:"excluded_dirs,omitempty"`
	PriorityDirs []string `json:"priority_dirs,omitempty"`
}

type fileDoc struct {
	Path   string  `json:"path"`
	Size   int64   `json:"size"`
	Mtime  *int64  `json:"mtime"`
	Front  *string `json:"front"`
	Middle *string `json:"middle"`
	End    *string `json:"end"`
	Full   *string `json:"full"`
}

type groupDoc struct {
	Size    int64  `json:"size"`
	Mode    string `json:"mode"`
	Members []int  `json:"members"`
}

// Save writes the archive as indented JSON. Output is byte-identical
// for identical input state.
func Save(w io.Writer, a *Archive) error {
	doc := document{
		Schema: SchemaVersion,
		Mode:   string(a.Dedup.Mode),
		Boost:  string(a.Dedup.Boost),
	}
	if a.Dedup.Partial {
		doc.Partial = true
	}
	if a.Filters != nil {
		doc.Filters = filtersDoc{
			MinSize:      a.Filters.MinSize,
			MaxSize:      a.Filters.MaxSize,
			Extensions:   a.Filters.ExtensionList(),
			ExcludedDirs: a.Filters.ExcludedDirs,
			PriorityDirs: a.Filters.PriorityDirs,
		}
	}

	index := make(map[*types.FileRecord]int, len(a.Scan.Files))
	doc.Files = make([]fileDoc, 0, len(a.Scan.Files))
	for i, f := range a.Scan.Files {
		index[f] = i
		fd := fileDoc{Path: f.Path, Size: f.Size}
		if f.ModTime != 0 {
			mtime := f.ModTime
			fd.Mtime = &mtime
		}
		fd.Front = slotHex(f.Digests.Front)
		fd.Middle = slotHex(f.Digests.Middle)
		fd.End = slotHex(f.Digests.End)
		fd.Full = slotHex(f.Digests.Full)
		doc.Files = append(doc.Files, fd)
	}

	doc.Groups = make([]groupDoc, 0, len(a.Dedup.Groups))
	for _, g := range a.Dedup.Groups {
		gd := groupDoc{Size: g.Size, Mode: string(g.Mode)}
		for _, f := range g.Files {
			i, ok := index[f]
			if !ok {
				return types.Errorf(types.KindCorruptResult, "group member %s is not in the file list", f.Path)
			}
			gd.Members = append(gd.Members, i)
		}
		doc.Groups = append(doc.Groups, gd)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Load parses a saved document and rebuilds the archive without
// re-hashing anything.
func Load(r io.Reader) (*Archive, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, types.WrapError(types.KindCorruptResult, "parse result", err)
	}
	if doc.Schema != SchemaVersion {
		return nil, types.Errorf(types.KindCorruptResult, "unsupported schema version %d (expected %d)", doc.Schema, SchemaVersion)
	}

	mode, err := types.ParseMode(doc.Mode)
	if err != nil {
		return nil, types.Errorf(types.KindCorruptResult, "invalid mode %q", doc.Mode)
	}
	boost, err := types.ParseBoost(doc.Boost)
	if err != nil {
		return nil, types.Errorf(types.KindCorruptResult, "invalid boost %q", doc.Boost)
	}

	cfg := filters.New()
	cfg.MinSize = doc.Filters.MinSize
	cfg.MaxSize = doc.Filters.MaxSize
	cfg.SetExtensions(doc.Filters.Extensions)
	cfg.ExcludedDirs = doc.Filters.ExcludedDirs
	cfg.PriorityDirs = doc.Filters.PriorityDirs

	scan := &types.ScanResult{}
	files := make([]*types.FileRecord, 0, len(doc.Files))
	for i, fd := range doc.Files {
		f := &types.FileRecord{Path: fd.Path, Size: fd.Size}
		if fd.Mtime != nil {
			f.ModTime = *fd.Mtime
		}
		for _, s := range []struct {
			hex  *string
			slot *types.DigestSlot
		}{
			{fd.Front, &f.Digests.Front},
			{fd.Middle, &f.Digests.Middle},
			{fd.End, &f.Digests.End},
			{fd.Full, &f.Digests.Full},
		} {
			if s.hex == nil {
				continue
			}
			sum, err := strconv.ParseUint(*s.hex, 16, 64)
			if err != nil {
				return nil, types.Errorf(types.KindCorruptResult, "file %d: invalid digest %q", i, *s.hex)
			}
			s.slot.Set(sum)
		}
		files = append(files, f)
		scan.TotalBytes += f.Size
	}
	scan.Files = files

	dedup := &types.DedupResult{Mode: mode, Boost: boost, Partial: doc.Partial}
	for gi, gd := range doc.Groups {
		if len(gd.Members) < 2 {
			return nil, types.Errorf(types.KindCorruptResult, "group %d has fewer than two members", gi)
		}
		g := &types.DuplicateGroup{Size: gd.Size, Mode: types.Mode(gd.Mode)}
		for _, idx := range gd.Members {
			if idx < 0 || idx >= len(files) {
				return nil, types.Errorf(types.KindCorruptResult, "group %d: member index %d out of range", gi, idx)
			}
			g.Files = append(g.Files, files[idx])
		}
		dedup.Groups = append(dedup.Groups, g)
	}

	return &Archive{Filters: cfg, Scan: scan, Dedup: dedup}, nil
}

// slotHex renders a digest slot as a 16-hex-digit string, or nil when empty.
func slotHex(s types.DigestSlot) *string {
	if !s.OK {
		return nil
	}
	hex := fmt.Sprintf("%016x", s.Sum)
	return &hex
}
