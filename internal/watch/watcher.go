// Package watch re-runs work when fixture files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"expectkit/internal/logging"
)

// DefaultDebounce collapses the burst of events editors emit per save.
const DefaultDebounce = 200 * time.Millisecond

// Stats counts watcher activity.
type Stats struct {
	Events        int
	Triggers      int
	Errors        int
	LastEventPath string
	LastEventType string
	LastEventTime time.Time
}

// FileWatcher watches a fixed set of files. Their directories are
// watched so that editors replacing a file through rename are seen.
type FileWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	files    map[string]bool
	pending  map[string]time.Time
	debounce time.Duration
	onChange func(paths []string)
	stats    Stats
	done     chan struct{}
}

// New creates a watcher for files. onChange receives the changed files,
// sorted, once they have been quiet for debounce.
func New(files []string, debounce time.Duration, onChange func(paths []string)) (*FileWatcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  w,
		files:    make(map[string]bool, len(files)),
		pending:  make(map[string]time.Time),
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		fw.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		logging.CLIDebug("watching directory: %s", dir)
	}
	return fw, nil
}

// Run processes events until ctx is done, then closes the watcher.
func (fw *FileWatcher) Run(ctx context.Context) error {
	defer close(fw.done)
	defer fw.watcher.Close()

	ticker := time.NewTicker(fw.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryCLI).Error("watcher error: %v", err)
			fw.mu.Lock()
			fw.stats.Errors++
			fw.mu.Unlock()

		case <-ticker.C:
			fw.flush(time.Now())
		}
	}
}

// Done is closed once Run returns.
func (fw *FileWatcher) Done() <-chan struct{} { return fw.done }

// Stats returns a snapshot of the counters.
func (fw *FileWatcher) Stats() Stats {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.stats
}

func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path, err := filepath.Abs(event.Name)
	if err != nil || !fw.files[path] {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	default:
		return
	}
	logging.CLIDebug("%s event for %s", eventType, path)

	fw.mu.Lock()
	fw.stats.Events++
	fw.stats.LastEventPath = path
	fw.stats.LastEventType = eventType
	fw.stats.LastEventTime = time.Now()
	fw.pending[path] = time.Now()
	fw.mu.Unlock()
}

// flush fires onChange for files that have been quiet for the debounce
// interval.
func (fw *FileWatcher) flush(now time.Time) {
	fw.mu.Lock()
	var ready []string
	for path, at := range fw.pending {
		if now.Sub(at) >= fw.debounce {
			ready = append(ready, path)
			delete(fw.pending, path)
		}
	}
	if len(ready) > 0 {
		fw.stats.Triggers++
	}
	fw.mu.Unlock()

	if len(ready) == 0 {
		return
	}
	sort.Strings(ready)
	fw.onChange(ready)
}
