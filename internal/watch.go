package internal

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	tt "github.com/gnolang/undertaker/internal/types"
)

// watchDelay merges bursts of events on the same file into one run.
const watchDelay = 100 * time.Millisecond

// WatchOptions are the callbacks of Watch.
type WatchOptions struct {
	// IsSource selects the files to analyze. All files when nil.
	IsSource func(path string) bool
	// Report receives the outcome of every run.
	Report func(path string, defects []tt.Defect, err error)
	// Ready is called once every directory is watched.
	Ready func()
}

// Watch re-analyzes sources changed below dirs until ctx is done.
func (e *Engine) Watch(ctx context.Context, dirs []string, opts WatchOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := addTree(watcher, dir); err != nil {
			return err
		}
	}
	if opts.Ready != nil {
		opts.Ready()
	}
	e.logger.Debug("watcher loop starting", zap.Strings("dirs", dirs))
	defer e.logger.Debug("watcher loop ended", zap.Strings("dirs", dirs))

	pending := make(map[string]struct{})
	var flush <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			e.handleFileEvent(watcher, event, opts.IsSource, pending)
			if len(pending) > 0 && flush == nil {
				flush = time.After(watchDelay)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watcher error", zap.Error(err))
		case <-flush:
			flush = nil
			e.runPending(ctx, pending, opts.Report)
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

func (e *Engine) handleFileEvent(watcher *fsnotify.Watcher, event fsnotify.Event, isSource func(string) bool, pending map[string]struct{}) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(watcher, event.Name); err != nil {
				e.logger.Warn("cannot watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}
	if isSource == nil || isSource(event.Name) {
		pending[event.Name] = struct{}{}
	}
}

func (e *Engine) runPending(ctx context.Context, pending map[string]struct{}, report func(string, []tt.Defect, error)) {
	names := make([]string, 0, len(pending))
	for name := range pending {
		names = append(names, name)
		delete(pending, name)
	}
	sort.Strings(names)

	for _, name := range names {
		defects, err := e.Run(ctx, name)
		if err != nil {
			e.logger.Error("error processing file", zap.String("file", name), zap.Error(err))
		}
		if report != nil {
			report(name, defects, err)
		}
	}
}
