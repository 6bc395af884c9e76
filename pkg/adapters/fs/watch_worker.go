package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// watchWorker turns filesystem notifications in the notes directory into
// settle calls on the backend.
type watchWorker struct {
	*worker.BaseWorker
	backend   *Backend
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(b *Backend) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		backend:    b,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.backend.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.backend.Path, err)
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(w.backend.config.Debounce)
	w.backend.setWatcherActive(true)

	// The watcher outlives the context that initialized the backend; Close stops it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// processFilesystemEvent debounces a change to a note file.
// Returns false if the event does not concern a note.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) (processed bool) {
	logger := w.backend.config.Logger
	logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return false
	}
	if filepath.Dir(event.Name) != filepath.Clean(w.backend.Path) {
		return false
	}
	if !w.backend.isNoteFile(event.Name) {
		return false
	}

	w.debouncer.add(idFromName(event.Name), func(id string) {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.backend.settle(ctx, id, false); err != nil {
			w.report(fmt.Errorf("failed to settle note %s: %w", id, err))
		}
	})
	return true
}

// reconcileAfterOverflow rescans the directory when the kernel dropped events.
func (w *watchWorker) reconcileAfterOverflow(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		events, err := w.backend.Reconcile(ctx)
		if err != nil {
			w.backend.config.Logger.Error("reconcile failed", "error", err)
			return err
		}
		w.backend.config.Logger.Debug("reconciled after overflow", "events", len(events))
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		w.report(fmt.Errorf("reconcile panic: %w", err))
	}))
}

// handleWatcherError processes errors from the fsnotify watcher.
func (w *watchWorker) handleWatcherError(ctx context.Context, err error) {
	w.backend.config.Logger.Error("fsnotify error", "error", err)
	w.report(err)
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.reconcileAfterOverflow(ctx)
	}
}

func (w *watchWorker) report(err error) {
	if w.backend.config.ErrorHandler != nil {
		w.backend.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			logger := w.backend.config.Logger
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.backend.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// Pending timers must not settle after the backend has been closed.
	if !w.debouncer.stopAndWait(5 * time.Second) {
		w.backend.config.Logger.Warn("debouncer did not drain before shutdown")
	}
	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(ctx, wErr)
		}
	}
}
