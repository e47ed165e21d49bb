// Package watch reloads file templates when their directory changes.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/qualify/pkg/storage"
)

// DefaultDebounce is the quiet period before a burst of changes triggers a reload.
const DefaultDebounce = 300 * time.Millisecond

// TemplateWatcher calls reload after template files in a directory are
// created, written, removed or renamed. Bursts of events within the
// debounce window cause a single reload.
type TemplateWatcher struct {
	dir      string
	debounce time.Duration
	reload   func() error
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func NewTemplateWatcher(dir string, debounce time.Duration, reload func() error, logger *slog.Logger) *TemplateWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateWatcher{dir: dir, debounce: debounce, reload: reload, logger: logger}
}

// Run watches the directory until ctx is cancelled, creating it first if
// needed so templates added later are picked up.
func (w *TemplateWatcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0700); err != nil {
		return fmt.Errorf("create templates directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close() //nolint:errcheck // best-effort close on shutdown

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.logger.Debug("template change", "path", event.Name, "op", event.Op.String())
			w.trigger()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (w *TemplateWatcher) trigger() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		if err := w.reload(); err != nil {
			w.logger.Warn("template reload failed, keeping previous templates", "dir", w.dir, "error", err)
			return
		}
		w.logger.Info("templates reloaded", "dir", w.dir)
	})
}

func (w *TemplateWatcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return storage.IsTemplateFile(base)
}
