package store

import (
	"github.com/starford/annota/internal/models"
)

// Change pairs the record before and after an update.
type Change struct {
	Old models.Annotation `json:"old"`
	New models.Annotation `json:"new"`
}

// Event describes one committed mutation. Observers must treat it as
// read-only.
type Event struct {
	Created []models.Annotation `json:"created,omitempty"`
	Updated []Change            `json:"updated,omitempty"`
	Deleted []models.Annotation `json:"deleted,omitempty"`
}

// Empty reports whether the event carries no changes.
func (e Event) Empty() bool {
	return len(e.Created) == 0 && len(e.Updated) == 0 && len(e.Deleted) == 0
}

// Observer receives store events.
type Observer func(Event)

// Observe registers fn and returns a function that unregisters it.
func (s *Store) Observe(fn Observer) (cancel func()) {
	return s.observers.Add(fn)
}

// emit delivers ev to every observer. Empty events are dropped.
func (s *Store) emit(ev Event) {
	if ev.Empty() {
		return
	}
	s.observers.Notify(ev, s.logger, "store")
}
