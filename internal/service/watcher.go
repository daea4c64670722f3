package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/granarylabs/granary/internal/logger"
	"github.com/granarylabs/granary/internal/source"
)

// Watcher turns drop-folder filesystem events into pass triggers. Events are
// debounced so a file still being copied in arms a single pass after the
// writes quiet down instead of one pass per write.
type Watcher struct {
	folder    string
	debounce  time.Duration
	registry  *source.Registry
	scheduler *Scheduler
	logger    *logger.Logger
}

// NewWatcher creates a drop-folder watcher
//
// Parameters:
//   - folder: the watched drop folder, not recursed into
//   - debounce: quiet period before a burst of events triggers a pass
//   - registry: provider registry supplying the recognized extensions
//   - scheduler: scheduler receiving the triggers
//   - log: base logger used when the context carries none
//
// Returns:
//   - *Watcher: configured watcher instance
func NewWatcher(folder string, debounce time.Duration, registry *source.Registry, scheduler *Scheduler, log *logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		folder:    folder,
		debounce:  debounce,
		registry:  registry,
		scheduler: scheduler,
		logger:    log,
	}
}

// log returns a logger from context if available, otherwise the watcher's own
func (w *Watcher) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return w.logger
}

// Run watches the drop folder until ctx is cancelled. Returns an error only
// when the watch cannot be established; runtime watch errors are logged and
// the loop keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.folder); err != nil {
		return err
	}

	w.log(ctx).WithFields(logger.Fields{
		"folder":   w.folder,
		"debounce": w.debounce.String(),
	}).Info("Drop folder watcher started")

	// The timer stays stopped until a relevant event arms it. Each further
	// event within the debounce window pushes the deadline out.
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			w.log(ctx).Info("Drop folder watcher stopped")
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log(ctx).WithField(logger.FieldFile, event.Name).Debug("Drop folder changed")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			if !w.scheduler.Trigger("watch") {
				w.log(ctx).Debug("Watch trigger dropped, a pass is already running")
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log(ctx).WithError(err).Warn("Drop folder watch error")
		}
	}
}

// relevant reports whether the event concerns a file a registered provider
// would pick up. Removals are ignored; the next pass reconciles them.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext == "" {
		return false
	}
	_, ok := w.registry.ForPath(event.Name)
	return ok
}
