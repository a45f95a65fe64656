package worker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ppiankov/chorale/internal/model"
)

// Processor derives the excerpt set of one score file
type Processor interface {
	ProcessFile(ctx context.Context, path string) (*model.ExcerptSet, error)
}

// ScoreResult is the outcome of one file: a set or an error, never both
type ScoreResult struct {
	Path  string
	Set   *model.ExcerptSet
	Error error
}

// BatchProcessor processes many score files concurrently
type BatchProcessor struct {
	processor Processor
	pool      *Pool[string, *ScoreResult]
	limiter   *Limiter
}

// NewBatchProcessor creates a new batch processor. filesPerSecond <= 0 disables pacing.
func NewBatchProcessor(processor Processor, concurrency int, filesPerSecond float64, burst int) *BatchProcessor {
	b := &BatchProcessor{processor: processor}
	if filesPerSecond > 0 {
		b.limiter = NewLimiter(filesPerSecond, burst)
	}
	b.pool = NewPool(concurrency, b.processOne)
	return b
}

func (b *BatchProcessor) processOne(ctx context.Context, path string) *ScoreResult {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx, path); err != nil {
			return &ScoreResult{Path: path, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}
	set, err := b.processor.ProcessFile(ctx, path)
	if err != nil {
		return &ScoreResult{Path: path, Error: err}
	}
	return &ScoreResult{Path: path, Set: set}
}

// ProcessPaths processes the files concurrently and returns results ordered by path.
// Files left unprocessed because ctx was cancelled are reported with the context error.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*ScoreResult {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)

	results, started := b.pool.Run(ctx, sorted)
	for i, ok := range started {
		if !ok {
			results[i] = &ScoreResult{Path: sorted[i], Error: fmt.Errorf("not processed: %w", context.Cause(ctx))}
		}
	}
	return results
}

// ProcessDir discovers score files under root and processes them concurrently
func (b *BatchProcessor) ProcessDir(ctx context.Context, root string, extensions []string) ([]*ScoreResult, error) {
	paths, err := DiscoverFiles(root, extensions)
	if err != nil {
		return nil, fmt.Errorf("discover scores: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// DiscoverFiles lists files under root whose extension is in extensions, sorted.
// Hidden files and directories are skipped. An unreadable root is an error.
func DiscoverFiles(root string, extensions []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("input root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input root %s is not a directory", root)
	}

	want := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		want[ext] = true
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if want[strings.ToLower(filepath.Ext(name))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	slices.Sort(paths)
	return paths, nil
}
