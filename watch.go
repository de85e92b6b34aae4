package tripwire

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the rule file at path whenever it changes, until ctx is
// done. Bursts of changes within the debounce window cause one reload. A
// file that fails to load or compile is logged and the current rules stay
// in force.
//
// The directory holding path is watched rather than the file itself, so
// editors that save by replacing the file are followed.
func (e *Engine) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	log := e.log.WithField("path", path)
	log.Info("watching rules")

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(e.opts.Debounce)
			} else {
				resetTimer(timer, e.opts.Debounce)
			}
			timerC = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watch error")

		case <-timerC:
			timerC = nil
			e.metrics.reloads.Inc(1)
			if _, err := e.LoadFile(path); err == nil {
				log.Info("rules reloaded")
			}
		}
	}
}

// resetTimer restarts t, discarding a tick that fired but was not received.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
