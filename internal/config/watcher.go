package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"alankar-sync/internal/logging"
)

// debounce write bursts: editors often emit several events per save.
const watchSettleDelay = 250 * time.Millisecond

// WatchFile watches path and invokes onChange after each settled write, so
// the app can fan a refresh out to subscribed dashboards when runtime
// configuration changes underneath it.
func WatchFile(ctx context.Context, path string, logger *logging.Logger, onChange func()) error {
	if logger == nil {
		panic("config.WatchFile: logger must not be nil")
	}
	if onChange == nil {
		panic("config.WatchFile: onChange must not be nil")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to initialize fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which would drop a
	// watch placed on the file itself.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", filepath.Dir(target), err)
	}
	logger.Debug("watching config file", logging.Field("path", target))

	var settle *time.Timer
	settled := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("stopping config watcher: context canceled")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debugf("fsnotify event: op=%s path=%s", event.Op.String(), event.Name)
			if settle != nil {
				settle.Stop()
			}
			settle = time.AfterFunc(watchSettleDelay, func() {
				select {
				case settled <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", logging.Field("error", err))
		case <-settled:
			logger.Info("config file changed", logging.Field("path", target))
			onChange()
		}
	}
}
