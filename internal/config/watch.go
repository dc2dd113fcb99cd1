package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/banshee-data/lidarscan/internal/monitoring"
)

var logf = monitoring.Component("Config")

// DefaultDebounce is how long Watch waits after the last change before
// reloading. Editors often write a file in several steps.
const DefaultDebounce = 100 * time.Millisecond

// Watch reloads the config file at path whenever it changes and passes each
// valid result to onChange. Invalid files are logged and skipped, so the
// caller keeps its previous config. Watch blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file itself so that
// atomic replace-by-rename saves are seen.
func Watch(ctx context.Context, path string, debounce time.Duration, onChange func(*ScannerConfig)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logf("watcher error: %v", err)

		case <-timer.C:
			cfg, err := LoadScannerConfig(abs)
			if err != nil {
				logf("ignoring config change: %v", err)
				continue
			}
			logf("reloaded %s", abs)
			onChange(cfg)
		}
	}
}
