package cluster

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
)

// ReloadFunc is called after every reload attempt with its outcome.
type ReloadFunc func(err error)

// Watcher reloads a cluster file into a Registry whenever it changes.
//
// The parent directory is watched rather than the file itself because most
// editors save by renaming a temporary file over the original.  Bursts of
// events are collapsed by a debounce window.
type Watcher struct {
	path     string
	registry *Registry
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onReload ReloadFunc
	logger   logging.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce defaults to 200ms.
	Debounce time.Duration
	OnReload ReloadFunc
}

// NewWatcher creates a watcher for path.  Call Start to begin.
func NewWatcher(path string, registry *Registry, logger logging.Logger, opts WatcherOptions) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     abs,
		registry: registry,
		watcher:  fw,
		debounce: opts.Debounce,
		onReload: opts.OnReload,
		logger:   logger.Named("cluster-watcher"),
		done:     make(chan struct{}),
	}, nil
}

// Start watches until ctx is cancelled or Stop is called.  It does not
// block.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	go w.loop(ctx)
	return nil
}

// Stop ends watching.  Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()
	})
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("cluster file watch error", logging.Err(err))
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	err := LoadInto(w.registry, w.path)
	if err != nil {
		w.logger.Error("cluster file reload failed, keeping previous clusters",
			logging.String("path", w.path), logging.Err(err))
	} else {
		snap := w.registry.Snapshot()
		w.logger.Info("cluster file reloaded",
			logging.String("path", w.path),
			logging.Uint64("generation", snap.Generation()),
			logging.Int("clusters", len(snap.ClusterNames())))
		for _, name := range snap.UndefinedClusters() {
			w.logger.Warn("cluster declared but undefined", logging.String("cluster", name))
		}
	}
	if w.onReload != nil {
		w.onReload(err)
	}
}
