package engine

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchFile invokes fn whenever path is written to or recreated, debounced
// so a burst of appends triggers a single callback. Call the returned stop
// function to clean up. Used by serve mode to re-analyze a growing log.
func WatchFile(path string, debounce time.Duration, fn func()) (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("log watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("log watcher add %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if timer == nil {
						timer = time.NewTimer(debounce)
					} else {
						timer.Reset(debounce)
					}
					fire = timer.C
				}
			case <-fire:
				fire = nil
				fn()
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
