package deduper

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ivoronin/dupescout/internal/filters"
	"github.com/ivoronin/dupescout/internal/grouper"
	"github.com/ivoronin/dupescout/internal/types"
)

// boostKey is the stage-0 grouping key: the file size plus an optional
// name component selected by the boost mode.
type boostKey struct {
	size int64
	name string
}

// boostGroups performs stage 0: bucket by the boost key without any
// I/O beyond what the scanner already did, dropping singletons.
func (d *Deduper) boostGroups() [][]*types.FileRecord {
	key := boostKeyFunc(d.boost)
	return grouper.Group(d.files, key)
}

func boostKeyFunc(b types.Boost) func(*types.FileRecord) boostKey {
	switch b {
	case types.BoostSizeExt:
		return func(f *types.FileRecord) boostKey {
			return boostKey{f.Size, filters.Extension(f.Path)}
		}
	case types.BoostSizeFilename:
		return func(f *types.FileRecord) boostKey {
			return boostKey{f.Size, strings.ToLower(filepath.Base(f.Path))}
		}
	case types.BoostSizeFuzzyFilename:
		return func(f *types.FileRecord) boostKey {
			return boostKey{f.Size, NormalizeFilename(filepath.Base(f.Path))}
		}
	default:
		return func(f *types.FileRecord) boostKey {
			return boostKey{size: f.Size}
		}
	}
}

var (
	parenCounterRe = regexp.MustCompile(`\s*\(\d+\)$`)
	copyTailRe     = regexp.MustCompile(`(?i)[\s_-]*copy[\s_]*\d*$`)
	digitRunRe     = regexp.MustCompile(`[0-9]+`)
)

// NormalizeFilename maps a basename to its fuzzy grouping form:
// the extension is kept (lowercased); from the stem, a trailing " (N)"
// counter is stripped, then a " - Copy"-style tail, then every
// remaining digit run; the result is trimmed and lowercased.
//
// "IMG_1234 (2).jpg", "IMG_5678 - Copy.JPG" and "IMG_0001.jpg" all
// normalize to "img_.jpg". The exact behavior is pinned by tests.
func NormalizeFilename(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	stem = parenCounterRe.ReplaceAllString(stem, "")
	stem = copyTailRe.ReplaceAllString(stem, "")
	stem = digitRunRe.ReplaceAllString(stem, "")
	stem = strings.TrimSpace(stem)

	return strings.ToLower(stem + ext)
}
