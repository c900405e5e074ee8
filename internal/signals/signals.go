// Package signals lets a separate craft process stop or pause a running
// task sequence through files in <project>/.craft/signals.
package signals

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Signal file names.
const (
	StopFile  = "stop"
	PauseFile = "pause"
)

// pollInterval is how often WaitWhilePaused re-checks the pause file.
const pollInterval = 250 * time.Millisecond

// Dir returns the signals directory for a project.
func Dir(projectRoot string) string {
	return filepath.Join(projectRoot, ".craft", "signals")
}

// Watcher tracks the stop and pause signal files.
type Watcher struct {
	dir string
	log zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	paused  bool

	stopCh   chan struct{}
	stopOnce sync.Once

	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  sync.Once
}

// NewWatcher creates the signals directory and starts watching it. When a
// file watcher cannot be created the checks fall back to stat calls.
func NewWatcher(projectRoot string, log zerolog.Logger) (*Watcher, error) {
	dir := Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:    dir,
		log:    log.With().Str("component", "signals").Logger(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Debug().Err(err).Msg("file watcher unavailable, polling signal files")
		return w, nil
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		w.log.Debug().Err(err).Msg("cannot watch signals directory, polling signal files")
		return w, nil
	}
	w.watcher = fw

	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			created := event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0
			removed := event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0
			switch filepath.Base(event.Name) {
			case StopFile:
				if created {
					w.markStopped()
				}
			case PauseFile:
				w.mu.Lock()
				if created {
					w.paused = true
				} else if removed {
					w.paused = false
				}
				w.mu.Unlock()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Debug().Err(err).Msg("signal watcher error")
		}
	}
}

func (w *Watcher) markStopped() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.stopOnce.Do(func() {
		w.log.Info().Msg("stop signal received")
		close(w.stopCh)
	})
}

func (w *Watcher) exists(name string) bool {
	_, err := os.Stat(filepath.Join(w.dir, name))
	return err == nil
}

// ShouldStop reports whether a stop signal has been received. Once seen it
// stays set until Clear.
func (w *Watcher) ShouldStop() bool {
	// The watcher may not have delivered the event yet.
	if w.exists(StopFile) {
		w.markStopped()
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stopped
}

// ShouldPause reports whether the pause file is present.
func (w *Watcher) ShouldPause() bool {
	paused := w.exists(PauseFile)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.paused = paused
	return paused
}

// Stopped returns a channel closed when a stop signal is first observed.
func (w *Watcher) Stopped() <-chan struct{} {
	return w.stopCh
}

// WaitWhilePaused blocks while the pause file exists. It returns early on a
// stop signal or when ctx is done.
func (w *Watcher) WaitWhilePaused(ctx context.Context) error {
	if !w.ShouldPause() {
		return nil
	}
	w.log.Info().Msg("paused")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			if w.ShouldStop() || !w.ShouldPause() {
				w.log.Info().Msg("resumed")
				return nil
			}
		}
	}
}

// Clear removes the signal files and resets the stop state. A stop channel
// that was already closed stays closed.
func (w *Watcher) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = false
	w.paused = false
	os.Remove(filepath.Join(w.dir, StopFile))
	os.Remove(filepath.Join(w.dir, PauseFile))
}

// Close stops watching.
func (w *Watcher) Close() {
	w.closed.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// SendStop writes the stop file for the project.
func SendStop(projectRoot string) error {
	return send(projectRoot, StopFile)
}

// SendPause writes the pause file for the project.
func SendPause(projectRoot string) error {
	return send(projectRoot, PauseFile)
}

// Resume removes the pause file for the project.
func Resume(projectRoot string) error {
	err := os.Remove(filepath.Join(Dir(projectRoot), PauseFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func send(projectRoot, name string) error {
	dir := Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(time.Now().Format(time.RFC3339)), 0644)
}
