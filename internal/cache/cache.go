package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// keyPrefix versions the encoding of cached excerpt sets
const keyPrefix = "chorale:v2:"

// Cache holds encoded excerpt sets keyed by Key
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Stats counts lookups since the cache was created
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	DiskHits int64 `json:"disk_hits"`
}

// Key derives a cache key from a source document and the settings that shape its derivation.
// Editing the file or changing segmentation settings yields a new key.
func Key(content []byte, settings string) string {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte{0})
	h.Write([]byte(settings))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// digest returns the hash part of a key, or a filesystem-safe form of a foreign key
func digest(key string) string {
	if d, ok := strings.CutPrefix(key, keyPrefix); ok {
		return d
	}
	return strings.NewReplacer(":", "_", "/", "_", string('\\'), "_").Replace(key)
}

// Noop is a cache that stores nothing, used when caching is disabled
type Noop struct{}

func (Noop) Get(string) ([]byte, bool) { return nil, false }

func (Noop) Set(string, []byte, time.Duration) error { return nil }

func (Noop) Delete(string) error { return nil }

func (Noop) Clear() error { return nil }
