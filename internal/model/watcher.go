package model

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/OldStager01/leakwatch/internal/logger"
)

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the registry whenever the bundle file changes.
type Watcher struct {
	path     string
	registry *Registry
	onReload func(version string, err error)
	debounce time.Duration
}

func NewWatcher(path string, registry *Registry, onReload func(version string, err error)) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		registry: registry,
		onReload: onReload,
		debounce: reloadDebounce,
	}
}

// Run watches the bundle directory until ctx is cancelled. Editors often
// replace files via rename, so the directory is watched instead of the file.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch model directory: %w", err)
	}

	log := logger.WithComponent("model-watcher").WithField("path", w.path)
	log.Info("Watching model bundle")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			version, err := w.registry.LoadFile(w.path)
			if err != nil {
				log.WithError(err).Warn("Model bundle reload failed, keeping previous models")
			} else {
				log.WithField("version", version).Info("Model bundle reloaded")
			}
			if w.onReload != nil {
				w.onReload(version, err)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Model watcher error")
		}
	}
}
