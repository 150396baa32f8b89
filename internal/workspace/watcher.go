package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ledgervcs/internal/logging"
	"ledgervcs/internal/validation"
	"ledgervcs/shared/utils"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports working tree edits in batches once the tree has been quiet
// for a while.
type Watcher struct {
	root    string
	quiet   time.Duration
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

func NewWatcher(root string, quiet time.Duration, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &Watcher{root: root, quiet: quiet, watcher: fw, logger: logging.OrNop(logger)}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// Run delivers batches of changed paths to onChange until ctx is done. An
// error from onChange stops the watcher and is returned.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string) error) error {
	pending := map[string]bool{}
	timer := time.NewTimer(w.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			rel, ok := w.relevant(event)
			if !ok {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("watching new directory", zap.String("path", rel), zap.Error(err))
					}
				}
			}
			pending[rel] = true
			timer.Reset(w.quiet)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			paths := utils.SortedKeys(pending)
			pending = map[string]bool{}
			w.logger.Debug("working tree changed", zap.Int("count", len(paths)))
			if err := onChange(ctx, paths); err != nil {
				return err
			}
		}
	}
}

// relevant maps an event to its tree path, dropping descriptor writes.
func (w *Watcher) relevant(event fsnotify.Event) (string, bool) {
	if event.Op == fsnotify.Chmod {
		return "", false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || strings.HasPrefix(rel, strings.TrimSuffix(validation.ReservedPath, ".json")) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}
