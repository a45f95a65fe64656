package worker

import (
	"context"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"
)

// defaultBurst lets a handful of reads through before pacing starts
const defaultBurst = 5

// Limiter paces file reads per input directory, so a corpus spread over
// several mounts does not starve one slow mount's neighbours
type Limiter struct {
	mu    sync.Mutex
	dirs  map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

// NewLimiter creates a limiter allowing filesPerSecond reads per directory.
// A non-positive rate means no limit.
func NewLimiter(filesPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = defaultBurst
	}
	limit := rate.Inf
	if filesPerSecond > 0 {
		limit = rate.Limit(filesPerSecond)
	}
	return &Limiter{dirs: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

// Wait blocks until the directory holding path may be read again
func (l *Limiter) Wait(ctx context.Context, path string) error {
	return l.forDir(dirKey(path)).Wait(ctx)
}

func (l *Limiter) forDir(dir string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.dirs[dir]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.dirs[dir] = lim
	}
	return lim
}

// dirKey returns the directory a file is read from
func dirKey(path string) string {
	return filepath.Dir(filepath.Clean(path))
}
