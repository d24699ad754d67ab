package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultReloadDelay debounces bursts of file events into one reload.
const DefaultReloadDelay = 500 * time.Millisecond

// Watcher reloads a configuration file when it changes.
type Watcher struct {
	path        string
	logger      zerolog.Logger
	reloadDelay time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		path:        filepath.Clean(path),
		logger:      logger.With().Str("component", "config-watcher").Logger(),
		reloadDelay: DefaultReloadDelay,
	}
}

// SetReloadDelay changes the debounce delay.
func (w *Watcher) SetReloadDelay(d time.Duration) {
	w.reloadDelay = d
}

// Watch starts watching and calls reloadFn with each successfully loaded
// configuration. Invalid files are logged and skipped. The directory is
// watched rather than the file so that editors that replace the file on
// save keep triggering reloads.
func (w *Watcher) Watch(ctx context.Context, reloadFn func(*Config) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.processEvents(ctx, watcher, reloadFn)

	w.logger.Info().
		Str("path", w.path).
		Msg("Started watching config file")

	return nil
}

// processEvents processes file system events and triggers reloads.
func (w *Watcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, reloadFn func(*Config) error) {
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Config file changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.reloadDelay, func() {
				if err := w.triggerReload(ctx, reloadFn); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload config")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// triggerReload loads the file and hands it to reloadFn.
func (w *Watcher) triggerReload(ctx context.Context, reloadFn func(*Config) error) error {
	if ctx.Err() != nil {
		return nil
	}

	w.logger.Info().Msg("Reloading config...")

	cfg, err := Load(ctx, w.path)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}

	if err := reloadFn(cfg); err != nil {
		return fmt.Errorf("failed to apply reloaded config: %w", err)
	}

	w.logger.Info().
		Int("sites", len(cfg.Sites)).
		Msg("Config reloaded successfully")

	return nil
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		return err
	}
	return nil
}
