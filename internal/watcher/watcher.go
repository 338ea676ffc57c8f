// Package watcher reports debounced changes to a fixed set of files.
//
// It watches the parent directories rather than the files themselves so
// that editors and writers replacing a file through rename are still seen.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change batch is delivered.
const DefaultDebounce = 500 * time.Millisecond

// FileWatcher delivers batches of changed files.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	debounce time.Duration
	logger   *slog.Logger

	pendingMu sync.Mutex
	pending   map[string]bool

	timerMu sync.Mutex
	timer   *time.Timer

	cancel   context.CancelFunc
	stopOnce sync.Once
	doneCh   chan struct{}
}

// Option configures a FileWatcher.
type Option func(*FileWatcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(fw *FileWatcher) {
		if d > 0 {
			fw.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(fw *FileWatcher) {
		fw.logger = logger
	}
}

// New creates a watcher for files. Every parent directory must exist.
func New(files []string, opts ...Option) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher:  w,
		files:    make(map[string]bool),
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		pending:  make(map[string]bool),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(fw)
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
	}

	return fw, nil
}

// Start delivers change batches to callback until ctx is cancelled or Stop
// is called. Batches hold absolute paths in sorted order.
func (fw *FileWatcher) Start(ctx context.Context, callback func(files []string)) {
	ctx, fw.cancel = context.WithCancel(ctx)
	go fw.watch(ctx, callback)
}

// Stop stops the watcher. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		if fw.cancel != nil {
			fw.cancel()
			<-fw.doneCh
		} else {
			close(fw.doneCh)
		}
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watch(ctx context.Context, callback func(files []string)) {
	defer close(fw.doneCh)

	fireCh := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			fw.stopTimer()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.relevant(event) {
				continue
			}
			fw.pendingMu.Lock()
			fw.pending[filepath.Clean(event.Name)] = true
			fw.pendingMu.Unlock()
			fw.resetTimer(fireCh)

		case <-fireCh:
			if files := fw.drain(); len(files) > 0 {
				callback(files)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return fw.files[filepath.Clean(event.Name)]
}

func (fw *FileWatcher) drain() []string {
	fw.pendingMu.Lock()
	defer fw.pendingMu.Unlock()

	files := make([]string, 0, len(fw.pending))
	for f := range fw.pending {
		files = append(files, f)
	}
	fw.pending = make(map[string]bool)
	sort.Strings(files)
	return files
}

func (fw *FileWatcher) resetTimer(fireCh chan struct{}) {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, func() {
		select {
		case fireCh <- struct{}{}:
		default:
		}
	})
}

func (fw *FileWatcher) stopTimer() {
	fw.timerMu.Lock()
	defer fw.timerMu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
		fw.timer = nil
	}
}
