package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 500 * time.Millisecond

var watchedExt = map[string]bool{".json": true, ".yaml": true, ".yml": true, ".lua": true}

// Watcher reloads the catalog when descriptor files or scripts change on disk.
type Watcher struct {
	catalog  *Catalog
	fsw      *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher watches dirs and their subdirectories. Missing dirs are created;
// empty entries are skipped.
func NewWatcher(c *Catalog, debounce time.Duration, dirs ...string) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{catalog: c, fsw: fsw, debounce: debounce}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
		if err := w.addTree(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

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
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run reloads the catalog after each burst of changes until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	logger := w.catalog.logger

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						logger.Warn("watch new directory", "path", ev.Name, "err", err)
					}
					// A directory moved in whole brings files that raise no
					// events of their own.
					logger.Debug("directory added", "path", ev.Name)
					timer.Reset(w.debounce)
					continue
				}
			}
			if !watchedExt[strings.ToLower(filepath.Ext(ev.Name))] {
				continue
			}
			logger.Debug("source changed", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "err", err)

		case <-timer.C:
			if err := w.catalog.Reload(ctx); err != nil && ctx.Err() == nil {
				logger.Error("reload after change", "err", err)
			}
		}
	}
}
