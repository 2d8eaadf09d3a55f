package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher refreshes the registry when its agent file changes on disk.
//
// Filesystem events are coalesced into a single-slot queue: an event
// arriving while a refresh is in progress queues exactly one follow-up
// refresh and never interrupts the one running. Events are additionally
// debounced, since editors emit bursts of writes per save.
type Watcher struct {
	reg      *Registry
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	pending  chan struct{} // capacity 1: the queued-refresh slot
	logger   *zap.Logger
}

// NewWatcher creates a watcher for the agent file at path.
func NewWatcher(reg *Registry, path string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	return &Watcher{
		reg:      reg,
		path:     filepath.Clean(path),
		debounce: debounce,
		watcher:  fw,
		pending:  make(chan struct{}, 1),
		logger:   logger,
	}, nil
}

// Start begins watching. It returns after spawning the event and refresh
// goroutines; both exit when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	// Watch the containing directory: editors replace files via rename,
	// which drops a watch on the file itself.
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	go w.watchLoop(ctx)
	go w.refreshLoop(ctx)
	return nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// watchLoop turns relevant filesystem events into queued refreshes.
func (w *Watcher) watchLoop(ctx context.Context) {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			select {
			case w.pending <- struct{}{}:
			default:
				// A refresh is already queued; coalesce.
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("agent file watcher error", zap.Error(err))
		}
	}
}

// refreshLoop drains queued refreshes one at a time.
func (w *Watcher) refreshLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.pending:
			if err := w.reg.Refresh(); err != nil {
				w.logger.Warn("watch-triggered refresh failed", zap.Error(err))
			}
		}
	}
}
