// Package cache provides persistent caching of range digests between runs.
package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/ivoronin/dupescout/internal/types"
)

const (
	bucketName = "digests"
	digestSize = 8 // xxh64
)

// Cache stores computed range digests in BoltDB so unchanged files skip
// re-reads on later runs. Implements self-cleaning: each run creates a
// new database, only used entries survive.
type Cache struct {
	readDB  *bolt.DB // Existing cache (read-only)
	writeDB *bolt.DB // New cache (write) - BoltDB locks this file
	path    string   // Final path (for atomic swap)
	enabled bool
}

// Open opens existing cache for reading and creates new cache for writing.
// BoltDB's built-in file locking on the .new file prevents concurrent instances.
// Returns disabled cache if path is empty.
func Open(path string) (*Cache, error) {
	if path == "" {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &Cache{path: path, enabled: true}
	var err error

	if _, statErr := os.Stat(path); statErr == nil {
		c.readDB, err = bolt.Open(path, 0o600, &bolt.Options{
			ReadOnly: true,
			Timeout:  1 * time.Second,
		})
		if err != nil {
			// Can't open existing - continue without read cache
			c.readDB = nil
		}
	}

	newPath := path + ".new"
	c.writeDB, err = bolt.Open(newPath, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("create new cache (locked by another instance?): %w", err)
	}

	if err := c.writeDB.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// Close closes both databases and atomically replaces old with new.
// Only replaces if the write database closed successfully to avoid data loss.
func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		if err := c.readDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.writeDB != nil {
		if err := c.writeDB.Close(); err != nil {
			errs = append(errs, err)
		} else {
			if err := os.Rename(c.path+".new", c.path); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

const keyVersion byte = 1 // Increment when key format changes

// makeKey builds a deterministic byte key for BoltDB lookup.
// Key = ver(1) + path + NUL + fileSize(8) + ino(8) + mtime(8) + start(8) + length(8)
func makeKey(f *types.FileRecord, start, length int64) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(keyVersion)
	buf.WriteString(f.Path)
	buf.WriteByte(0) // NUL separator
	_ = binary.Write(buf, binary.BigEndian, f.Size)
	_ = binary.Write(buf, binary.BigEndian, f.Ino)
	_ = binary.Write(buf, binary.BigEndian, f.ModTime)
	_ = binary.Write(buf, binary.BigEndian, start)
	_ = binary.Write(buf, binary.BigEndian, length)
	return buf.Bytes()
}

// Lookup retrieves a cached digest for a byte range.
// Key = (path, fileSize, ino, mtime, start, length) - any change = cache miss.
// On HIT: copies the entry to writeDB (self-cleaning).
// Returns found=false when absent or disabled.
func (c *Cache) Lookup(f *types.FileRecord, start, length int64) (sum uint64, found bool, err error) {
	if !c.enabled || c.readDB == nil {
		return 0, false, nil
	}

	key := makeKey(f, start, length)
	var raw []byte

	err = c.readDB.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		data := b.Get(key)
		if len(data) == digestSize {
			raw = make([]byte, digestSize)
			copy(raw, data)
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("cache lookup: %w", err)
	}

	if raw == nil {
		return 0, false, nil
	}

	sum = binary.BigEndian.Uint64(raw)

	// Self-cleaning: copy valid entry to the new database
	_ = c.Store(f, start, length, sum)

	return sum, true, nil
}

// Store saves a range digest to the new database.
func (c *Cache) Store(f *types.FileRecord, start, length int64, sum uint64) error {
	if !c.enabled || c.writeDB == nil {
		return nil
	}

	val := make([]byte, digestSize)
	binary.BigEndian.PutUint64(val, sum)

	err := c.writeDB.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		return b.Put(makeKey(f, start, length), val)
	})
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}
