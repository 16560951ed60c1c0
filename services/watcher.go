package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DirectoryWatcher re-runs discovery when country directories or documents
// appear under the knowledge base. Bursts of events are collapsed into one
// refresh after the debounce interval.
type DirectoryWatcher struct {
	basePath   string
	extensions []string
	debounce   time.Duration
	refresh    func(ctx context.Context) error
}

func NewDirectoryWatcher(basePath string, extensions []string, debounce time.Duration, refresh func(ctx context.Context) error) *DirectoryWatcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &DirectoryWatcher{
		basePath:   basePath,
		extensions: extensions,
		debounce:   debounce,
		refresh:    refresh,
	}
}

// Run blocks until ctx is cancelled.
func (w *DirectoryWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.basePath); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.basePath, err)
	}
	entries, err := os.ReadDir(w.basePath)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			w.watchDir(watcher, filepath.Join(w.basePath, entry.Name()))
		}
	}
	zap.L().Info("watching knowledge base", zap.String("path", w.basePath), zap.Duration("debounce", w.debounce))

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
		} else {
			timer.Reset(w.debounce)
		}
		pending = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if w.isNewCountryDir(event) {
				w.watchDir(watcher, event.Name)
				schedule()
				continue
			}
			if w.isRelevant(event) {
				zap.L().Debug("watcher event", zap.String("event", event.String()))
				schedule()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			zap.L().Warn("watcher error", zap.Error(err))

		case <-pending:
			pending = nil
			if err := w.refresh(ctx); err != nil {
				zap.L().Error("refresh after directory change failed", zap.Error(err))
			}

		case <-ctx.Done():
			zap.L().Info("watcher stopped")
			return nil
		}
	}
}

func (w *DirectoryWatcher) watchDir(watcher *fsnotify.Watcher, dir string) {
	if err := watcher.Add(dir); err != nil {
		zap.L().Warn("could not watch directory", zap.String("dir", dir), zap.Error(err))
	}
}

// isNewCountryDir reports a directory created directly under the base path.
func (w *DirectoryWatcher) isNewCountryDir(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) || filepath.Clean(filepath.Dir(event.Name)) != filepath.Clean(w.basePath) {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.IsDir()
}

// isRelevant reports a supported document being created, written or moved in.
func (w *DirectoryWatcher) isRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	for _, want := range w.extensions {
		if ext == want {
			return true
		}
	}
	return false
}
