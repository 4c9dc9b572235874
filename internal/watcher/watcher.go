// Package watcher re-runs work when scene files change on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before onChange runs
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc handles a settled change of the file at path
type ChangeFunc func(ctx context.Context, path string) error

// Watcher watches scene files for changes
type Watcher struct {
	paths    []string
	onChange ChangeFunc
	debounce time.Duration
}

// New creates a watcher over one or more files
func New(onChange ChangeFunc, paths ...string) *Watcher {
	return &Watcher{
		paths:    paths,
		onChange: onChange,
		debounce: DefaultDebounce,
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// Watch blocks until the context is cancelled or the fsnotify watcher
// closes. Changes are handled one at a time; a failing onChange is
// logged and watching continues.
func (w *Watcher) Watch(ctx context.Context) error {
	log := logging.GetFromContext(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	// Watch the directories, not the files, so editors that replace the
	// file on save are still seen
	watchedDirs := make(map[string]bool)
	fileSet := make(map[string]bool)
	for _, path := range w.paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := fsw.Add(dir); err != nil {
				return err
			}
			watchedDirs[dir] = true
		}
		fileSet[absPath] = true
		log.Info("watching scene file", "path", absPath)
	}

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	stopAll := func() {
		mu.Lock()
		defer mu.Unlock()
		for _, timer := range timers {
			timer.Stop()
		}
	}

	settled := make(chan string, len(fileSet))

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				stopAll()
				return nil
			}
			absPath, err := filepath.Abs(event.Name)
			if err != nil || !fileSet[absPath] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			mu.Lock()
			if timer, exists := timers[absPath]; exists {
				timer.Stop()
			}
			timers[absPath] = time.AfterFunc(w.debounce, func() {
				select {
				case settled <- absPath:
				default:
					// A change for this file is already queued
				}
			})
			mu.Unlock()

		case path := <-settled:
			log.Info("scene file changed", "path", path)
			if err := w.onChange(ctx, path); err != nil {
				log.Error("failed to handle change", "path", path, "err", err.Error())
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				stopAll()
				return nil
			}
			log.Warn("watcher error", "err", err.Error())

		case <-ctx.Done():
			stopAll()
			return ctx.Err()
		}
	}
}
