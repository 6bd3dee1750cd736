// Package safego provides a panic-recovering goroutine launcher for background work.
package safego

import "log/slog"

// Go launches fn in a new goroutine under the given name. If fn panics, the
// panic is recovered and logged with the name rather than crashing the process.
// All long-lived background goroutines (the audit recorder worker, the DB stats
// collector) are started through Go so an unrecovered panic never silently
// kills a worker.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "goroutine", name, "panic", r)
			}
		}()
		fn()
	}()
}
