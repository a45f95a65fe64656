package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskCache stores one JSON file per entry, sharded by the first two hex digits of the key
type DiskCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewDiskCache creates a disk cache rooted at dir with a default entry lifetime
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{dir: dir, ttl: ttl, now: time.Now}
}

// diskEntry is the file layout. Value holds the encoded excerpt set verbatim
// so cache files stay readable with ordinary JSON tools.
type diskEntry struct {
	Key     string          `json:"key"`
	Created time.Time       `json:"created"`
	Expires time.Time       `json:"expires"`
	Value   json.RawMessage `json:"value"`
}

func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)
	entry, err := readEntry(path)
	if err != nil {
		return nil, false
	}
	if entry.Key != key || c.now().After(entry.Expires) {
		_ = os.Remove(path)
		return nil, false
	}
	return entry.Value, true
}

// Set stores value, which must be a JSON document; a zero ttl uses the cache default
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if !json.Valid(value) {
		return fmt.Errorf("cache value for %s is not JSON", key)
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	now := c.now()
	data, err := json.Marshal(diskEntry{Key: key, Created: now, Expires: now.Add(ttl), Value: value})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	path := c.path(key)
	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, 0755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	// Workers may store the same score at once; rename keeps readers off partial files
	tmp, err := os.CreateTemp(shard, ".entry-*")
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit cache file: %w", err)
	}
	return nil
}

func (c *DiskCache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes the whole cache directory
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Prune removes expired and unreadable entries and returns how many were removed.
// A missing cache directory prunes nothing.
func (c *DiskCache) Prune() (int, error) {
	removed := 0
	now := c.now()
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == c.dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		entry, err := readEntry(path)
		if err == nil && !now.After(entry.Expires) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("prune %s: %w", c.dir, err)
	}
	return removed, nil
}

func (c *DiskCache) path(key string) string {
	d := digest(key)
	shard := "__"
	if len(d) >= 2 {
		shard = d[:2]
	}
	return filepath.Join(c.dir, shard, d+".json")
}

func readEntry(path string) (*diskEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
