package vault

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcherDebounceInterval is how often the watcher checks for pending
// filesystem events, batching rapid writes into a single change signal.
const watcherDebounceInterval = 500 * time.Millisecond

// Watcher monitors the vault directory and emits a signal when files
// change, so the daemon can schedule a sync pass. It deliberately does
// not report which files changed: the pass re-scans the tree and the
// change detector decides what uploads.
type Watcher struct {
	scanner *Scanner
	logger  *slog.Logger
	changes chan struct{}
}

// NewWatcher creates a file watcher over the scanner's vault directory.
func NewWatcher(scanner *Scanner, logger *slog.Logger) *Watcher {
	return &Watcher{
		scanner: scanner,
		logger:  logger,
		changes: make(chan struct{}, 1),
	}
}

// Changes returns the channel that receives a signal after vault files
// change. The channel has a buffer of one; coalesced signals are fine
// because a pass picks up everything changed since the watermark.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Watch starts watching the vault directory for changes. It blocks until
// the context is cancelled. Directories are watched recursively.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := w.scanner.Dir()

	if err := addRecursive(watcher, dir); err != nil {
		return fmt.Errorf("watching vault dir: %w", err)
	}

	w.logger.Info("file watcher started", slog.String("dir", dir))

	// Debounce: batch rapid writes into a single signal.
	var pendingAt time.Time

	ticker := time.NewTicker(watcherDebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("fsnotify events channel closed unexpectedly")
			}

			if shouldIgnoreEvent(event.Name) {
				continue
			}

			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
				pendingAt = time.Now()

				// If a new directory was created, watch it recursively.
				// Lstat so symlinked directories are not followed.
				if event.Has(fsnotify.Create) {
					if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
						if err := addRecursive(watcher, event.Name); err != nil {
							w.logger.Warn("watching new directory",
								slog.String("path", event.Name),
								slog.String("error", err.Error()),
							)
						}
					}
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("fsnotify errors channel closed unexpectedly")
			}

			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			if pendingAt.IsZero() || time.Since(pendingAt) < watcherDebounceInterval {
				continue
			}

			pendingAt = time.Time{}

			select {
			case w.changes <- struct{}{}:
			default: // a signal is already pending
			}
		}
	}
}

// addRecursive adds the directory and all non-hidden subdirectories to
// the fsnotify watch set.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != dir && strings.HasPrefix(filepath.Base(path), ".") {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}

// shouldIgnoreEvent filters out events for hidden files and editor
// temp-file churn that would otherwise trigger needless passes.
func shouldIgnoreEvent(absPath string) bool {
	base := filepath.Base(absPath)

	if strings.HasPrefix(base, ".") {
		return true
	}

	return strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".tmp")
}
