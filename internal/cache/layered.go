package cache

import (
	"sync/atomic"
	"time"
)

// LayeredCache keeps derived excerpt sets in memory and on disk so an unchanged
// corpus is not re-segmented on the next run or watch cycle
type LayeredCache struct {
	memory   *MemoryCache
	disk     *DiskCache
	diskHits atomic.Int64
}

// NewLayeredCache creates a layered cache; disk entries outlive the process
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get checks memory first; a disk hit is promoted to memory
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}
	val, found := c.disk.Get(key)
	if !found {
		return nil, false
	}
	c.diskHits.Add(1)
	_ = c.memory.Set(key, val, 0)
	return val, true
}

func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.disk.Set(key, value, ttl); err != nil {
		return err
	}
	return c.memory.Set(key, value, 0)
}

func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}

// Prune drops expired entries from the disk layer
func (c *LayeredCache) Prune() (int, error) {
	return c.disk.Prune()
}

// Stats reports memory hits, disk hits and misses of both layers
func (c *LayeredCache) Stats() Stats {
	s := c.memory.Stats()
	disk := c.diskHits.Load()
	s.DiskHits = disk
	s.Hits += disk
	s.Misses -= disk
	return s
}
