// Package observe implements the synchronous observer lists shared by the
// store, the layer manager and the history manager.
package observe

import (
	"fmt"
	"log/slog"
)

type entry[E any] struct {
	id int
	fn func(E)
}

// List is an ordered set of callbacks. The zero value is ready to use. It
// is not safe for concurrent use.
type List[E any] struct {
	next    int
	entries []entry[E]
}

// Add registers fn and returns a function that unregisters it. Calling the
// returned function more than once is harmless.
func (l *List[E]) Add(fn func(E)) (cancel func()) {
	l.next++
	id := l.next
	l.entries = append(l.entries, entry[E]{id: id, fn: fn})
	return func() {
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered callbacks.
func (l *List[E]) Len() int { return len(l.entries) }

// Notify calls every callback in registration order. A panicking callback
// is logged under component and does not stop the others.
func (l *List[E]) Notify(ev E, logger *slog.Logger, component string) {
	// Callbacks may cancel themselves while being notified.
	for _, e := range append([]entry[E](nil), l.entries...) {
		call(e.fn, ev, logger, component)
	}
}

func call[E any](fn func(E), ev E, logger *slog.Logger, component string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(component+": observer panicked", slog.String("panic", fmt.Sprint(r)))
		}
	}()
	fn(ev)
}
