package concurrency

import (
	"log/slog"
	"runtime/debug"
)

// SafeGo runs fn on its own goroutine and converts a panic into a logged
// error plus an optional onPanic callback, so a crashing background loop
// never takes the daemon down with it.
func SafeGo(fn func(), onPanic func(interface{})) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				slog.Error("Panic recovered", "panic", r, "stack", string(stack))
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
