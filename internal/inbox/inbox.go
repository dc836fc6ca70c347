// Package inbox watches a directory for batch job files and hands each one to
// a handler exactly once.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/forPelevin/shortcap/internal/logging"
)

const (
	LockName     = ".shortcap-watch.lock"
	jobExt       = ".toml"
	doneSuffix   = ".done"
	failedSuffix = ".failed"
)

// ErrLocked is returned when another watcher already owns the inbox.
var ErrLocked = errors.New("inbox is already being watched")

// Handler processes one job file. A nil error marks the file done.
type Handler func(ctx context.Context, path string) error

type Watcher struct {
	dir    string
	handle Handler
	log    *slog.Logger
	settle time.Duration
}

func New(dir string, handle Handler, log *slog.Logger) *Watcher {
	if log == nil {
		log = logging.Discard()
	}
	return &Watcher{dir: dir, handle: handle, log: log, settle: 250 * time.Millisecond}
}

// Run blocks until ctx is done. Job files already present when it starts are
// processed first.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.dir)
	if err != nil {
		return fmt.Errorf("stat inbox: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("inbox %q is not a directory", w.dir)
	}

	lockPath := filepath.Join(w.dir, LockName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire inbox lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			w.log.Warn("release inbox lock", "error", err)
		}
	}()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			w.log.Warn("close watcher", "error", err)
		}
	}()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}
	w.log.Info("watching inbox", "dir", w.dir)

	if err := w.sweep(ctx); err != nil {
		return err
	}

	// Files are handled once writes have been quiet for the settle period.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !isJobFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				pending[event.Name] = time.Now()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			w.log.Warn("watch error", "error", err)
		case now := <-ticker.C:
			ready := make([]string, 0, len(pending))
			for p, last := range pending {
				if now.Sub(last) >= w.settle {
					ready = append(ready, p)
				}
			}
			sort.Strings(ready)
			for _, p := range ready {
				delete(pending, p)
				if ctx.Err() != nil {
					return nil
				}
				w.process(ctx, p)
			}
		}
	}
}

func (w *Watcher) sweep(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isJobFile(e.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		w.process(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	w.log.Info("job file picked up", "path", path)
	suffix := doneSuffix
	if err := w.handle(ctx, path); err != nil {
		suffix = failedSuffix
		w.log.Error("job file failed", "path", path, "error", err)
	} else {
		w.log.Info("job file done", "path", path)
	}
	if err := os.Rename(path, path+suffix); err != nil {
		w.log.Error("mark job file", "path", path, "error", err)
	}
}

func isJobFile(name string) bool {
	base := filepath.Base(name)
	return !strings.HasPrefix(base, ".") && strings.EqualFold(filepath.Ext(base), jobExt)
}
