package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/ppiankov/chorale/internal/logger"
)

// DefaultDelay is the quiet period after the last change before a rerun
const DefaultDelay = 500 * time.Millisecond

// Watcher reports batches of changed score files below a root directory
type Watcher struct {
	root       string
	extensions []string
	ignore     []string
	delay      time.Duration
	fsw        *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
}

// New watches root and every non-hidden directory below it. Paths under ignore
// (typically the output and cache directories) are never reported.
func New(root string, extensions, ignore []string, delay time.Duration) (*Watcher, error) {
	if delay <= 0 {
		delay = DefaultDelay
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:       root,
		extensions: extensions,
		delay:      delay,
		fsw:        fsw,
		pending:    make(map[string]struct{}),
	}
	for _, dir := range ignore {
		if abs, err := filepath.Abs(dir); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers dir and its subdirectories
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (isHidden(d.Name()) || w.ignored(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, prefix := range w.ignore {
		if abs == prefix || strings.HasPrefix(abs, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Relevant reports whether an fsnotify event concerns a score file with one of the extensions,
// given with or without the leading dot.
// Chmod-only events and hidden files are ignored.
func Relevant(ev fsnotify.Event, extensions []string) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Base(ev.Name)
	if isHidden(name) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e == ext {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// Run delivers debounced batches of changed paths to onChange until ctx is cancelled.
// onChange runs on the debounce timer goroutine; batches never overlap.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	debounced := debounce.New(w.delay)
	var running sync.Mutex

	flush := func() {
		running.Lock()
		defer running.Unlock()

		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		paths := make([]string, 0, len(w.pending))
		for p := range w.pending {
			paths = append(paths, p)
		}
		w.pending = make(map[string]struct{})
		w.mu.Unlock()

		sort.Strings(paths)
		onChange(paths)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && !isHidden(info.Name()) {
					if err := w.addTree(ev.Name); err != nil {
						logger.Warn("%v", err)
					}
					continue
				}
			}
			if !Relevant(ev, w.extensions) {
				continue
			}
			logger.Debug("change: %s %s", ev.Op, ev.Name)
			w.mu.Lock()
			w.pending[ev.Name] = struct{}{}
			w.mu.Unlock()
			debounced(flush)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// Close stops watching
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
