package game

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports changes to YAML rule files under a set of directories.
// Bursts of events inside the debounce window collapse into one callback.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	onChange func()
}

// NewWatcher watches dirs (not recursively).
func NewWatcher(dirs []string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{fw: fw, debounce: debounce, onChange: onChange}, nil
}

// Run blocks until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if !isRuleFile(ev) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("rule watcher error", "err", err)
		case <-timer.C:
			if w.onChange != nil {
				w.onChange()
			}
		}
	}
}

func (w *Watcher) Close() error { return w.fw.Close() }

func isRuleFile(ev fsnotify.Event) bool {
	ext := filepath.Ext(ev.Name)
	if ext != ".yaml" && ext != ".yml" {
		return false
	}
	return ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
