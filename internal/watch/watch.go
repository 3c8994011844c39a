// Package watch triggers rebuilds when the source tree changes, with
// optional fixed-interval rebuilds on top.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docpress/internal/logfields"
)

// RebuildFunc runs one build. Errors are logged, not propagated; the
// watcher keeps running.
type RebuildFunc func(ctx context.Context) error

// Watcher monitors a source tree and invokes the rebuild function after a
// debounce window. Rapid bursts of file events collapse into one rebuild.
type Watcher struct {
	root     string
	rebuild  RebuildFunc
	debounce time.Duration

	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler

	mu          sync.Mutex
	stopOnce    sync.Once
	stopChan    chan struct{}
	triggerChan chan struct{}
}

// NewWatcher creates a watcher for the given source root.
func NewWatcher(root string, debounce time.Duration, rebuild RebuildFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to resolve source root: %w", err)
	}

	return &Watcher{
		root:        absRoot,
		rebuild:     rebuild,
		debounce:    debounce,
		watcher:     fsw,
		stopChan:    make(chan struct{}),
		triggerChan: make(chan struct{}, 1),
	}, nil
}

// ScheduleEvery adds a fixed-interval rebuild in addition to file events.
// Must be called before Start.
func (w *Watcher) ScheduleEvery(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(w.trigger),
		gocron.WithName("scheduled-rebuild"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule rebuild job: %w", err)
	}
	w.scheduler = s
	return nil
}

// Start begins watching. It returns once the watcher goroutines are
// running; rebuilds happen in the background until Stop or ctx ends.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	slog.Info("Watching source tree", logfields.Path(w.root))

	go w.watchLoop(ctx)
	go w.rebuildLoop(ctx)

	if w.scheduler != nil {
		w.scheduler.Start()
	}
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
		if w.scheduler != nil {
			if err := w.scheduler.Shutdown(); err != nil {
				slog.Error("Error stopping scheduler", logfields.Error(err))
			}
		}
	})
}

// addTree registers every directory under root, skipping hidden ones.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}

			// New directories need their own watch.
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						slog.Error("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Debug("Source change detected", logfields.File(event.Name), slog.String("op", event.Op.String()))
				w.trigger()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("File watcher error", logfields.Error(err))
		}
	}
}

// rebuildLoop runs debounced rebuilds.
func (w *Watcher) rebuildLoop(ctx context.Context) {
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.stopChan:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-w.triggerChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.runRebuild(ctx)
			})
		}
	}
}

func (w *Watcher) runRebuild(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopChan:
		return
	default:
	}

	slog.Info("Rebuilding after source change")
	if err := w.rebuild(ctx); err != nil {
		slog.Error("Rebuild failed", logfields.Error(err))
	}
}

// trigger coalesces pending rebuild requests.
func (w *Watcher) trigger() {
	select {
	case w.triggerChan <- struct{}{}:
	default:
	}
}
