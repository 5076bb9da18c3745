// Package grouper provides the bucketing primitive shared by every
// pipeline stage: partition records by a key, drop singletons.
package grouper

import "github.com/ivoronin/dupescout/internal/types"

// Group buckets files by key and returns only buckets with two or more
// members. Bucket order is unspecified; callers that need determinism
// sort afterwards. key must be pure and cheap or already cached - it is
// called exactly once per record.
func Group[K comparable](files []*types.FileRecord, key func(*types.FileRecord) K) [][]*types.FileRecord {
	buckets := make(map[K][]*types.FileRecord)
	for _, f := range files {
		k := key(f)
		buckets[k] = append(buckets[k], f)
	}

	groups := make([][]*types.FileRecord, 0, len(buckets))
	for _, g := range buckets {
		if len(g) >= 2 {
			groups = append(groups, g)
		}
	}
	return groups
}
