package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/iterm-deck/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompConfig)

// Watcher reloads the config file when it changes on disk and hands
// the fresh config to the onChange callback. Editors often write in
// several bursts, so events are debounced before reloading.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	onChange  func(*Config)
	debounce  time.Duration
	stopCh    chan struct{}
	mu        sync.Mutex
	lastEvent time.Time
}

// Watch starts watching path's directory for changes to the config
// file. The directory, not the file, is watched: atomic saves rename
// a temp file over the target, which drops file-level watches.
func Watch(path string, onChange func(*Config)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		watcher:  fsWatcher,
		onChange: onChange,
		debounce: 150 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	go w.watchLoop()
	return w, nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.mu.Lock()
			w.lastEvent = time.Now()
			w.mu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.mu.Lock()
				elapsed := time.Since(w.lastEvent)
				w.mu.Unlock()
				if elapsed >= w.debounce {
					w.reload()
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			watchLog.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFrom(w.path)
	if err != nil {
		watchLog.Warn("config reload failed, keeping previous settings", "error", err)
		return
	}
	watchLog.Info("config reloaded", "path", w.path)
	w.onChange(cfg)
}
