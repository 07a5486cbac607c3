// Package store holds the authoritative annotation table and keeps the
// spatial index in step with it.
//
// A Store is driven by one logical actor and is not safe for concurrent use.
// Observers run synchronously after each committed mutation, in registration
// order.
package store

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/annota/internal/apperr"
	"github.com/starford/annota/internal/models"
	"github.com/starford/annota/internal/observe"
	"github.com/starford/annota/internal/spatial"
)

// Filter selects annotations in spatial queries. A nil Filter accepts all.
type Filter func(models.Annotation) bool

type record struct {
	ann models.Annotation
	seq uint64
}

// Store is the annotation table.
type Store struct {
	records   map[string]*record
	index     *spatial.Index
	seq       uint64
	observers observe.List[Event]
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for warnings and observer failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIndex supplies the spatial index, e.g. one built with a custom node size.
func WithIndex(idx *spatial.Index) Option {
	return func(s *Store) {
		if idx != nil {
			s.index = idx
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]*record),
		index:   spatial.New(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add inserts a. It fails with apperr.ErrDuplicateID if the id is taken.
func (s *Store) Add(a models.Annotation) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("store: add %q: %w", a.ID, err)
	}
	if _, ok := s.records[a.ID]; ok {
		return fmt.Errorf("store: add %q: %w", a.ID, apperr.ErrDuplicateID)
	}
	s.insert(a.Clone())
	s.emit(Event{Created: []models.Annotation{a.Clone()}})
	return nil
}

// AddAll inserts list in one event. With replace the previous table is
// dropped and reported as deleted. Nothing is changed if any record is
// invalid or its id is taken.
func (s *Store) AddAll(list []models.Annotation, replace bool) error {
	seen := make(map[string]struct{}, len(list))
	for _, a := range list {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("store: add all %q: %w", a.ID, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("store: add all %q: %w", a.ID, apperr.ErrDuplicateID)
		}
		seen[a.ID] = struct{}{}
		if _, ok := s.records[a.ID]; ok && !replace {
			return fmt.Errorf("store: add all %q: %w", a.ID, apperr.ErrDuplicateID)
		}
	}

	var ev Event
	if replace {
		ev.Deleted = s.All()
		s.reset()
	}
	for _, a := range list {
		s.insert(a.Clone())
		ev.Created = append(ev.Created, a.Clone())
	}
	s.emit(ev)
	return nil
}

// Get returns a copy of the annotation with the given id.
func (s *Store) Get(id string) (models.Annotation, bool) {
	r, ok := s.records[id]
	if !ok {
		s.logger.Warn("store: get: annotation not found", slog.String("id", id))
		return models.Annotation{}, false
	}
	return r.ann.Clone(), true
}

// Has reports whether id is stored.
func (s *Store) Has(id string) bool {
	_, ok := s.records[id]
	return ok
}

// Update replaces the record for id with a. a.ID must equal id. An absent id
// is logged and ignored.
func (s *Store) Update(id string, a models.Annotation) error {
	if a.ID != id {
		return fmt.Errorf("store: update %q with %q: %w", id, a.ID, apperr.ErrIDMismatch)
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("store: update %q: %w", id, err)
	}
	r, ok := s.records[id]
	if !ok {
		s.logger.Warn("store: update: annotation not found", slog.String("id", id))
		return nil
	}
	old := r.ann
	r.ann = a.Clone()
	s.index.Insert(id, r.ann.Bounds())
	s.emit(Event{Updated: []Change{{Old: old.Clone(), New: a.Clone()}}})
	return nil
}

// Delete removes id and reports whether it was present. An absent id is
// logged and ignored.
func (s *Store) Delete(id string) bool {
	r, ok := s.records[id]
	if !ok {
		s.logger.Warn("store: delete: annotation not found", slog.String("id", id))
		return false
	}
	delete(s.records, id)
	s.index.Remove(id)
	s.emit(Event{Deleted: []models.Annotation{r.ann.Clone()}})
	return true
}

// Clear empties the store, reporting every prior record as deleted.
func (s *Store) Clear() {
	ev := Event{Deleted: s.All()}
	s.reset()
	s.emit(ev)
}

// All returns copies of every record in insertion order.
func (s *Store) All() []models.Annotation {
	recs := s.sorted(func(a, b *record) int { return cmp.Compare(a.seq, b.seq) })
	out := make([]models.Annotation, len(recs))
	for i, r := range recs {
		out[i] = r.ann.Clone()
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int { return len(s.records) }

// GetAt returns the topmost annotation whose geometry contains (x, y),
// widened by buffer, that filter accepts. Later insertions are on top.
func (s *Store) GetAt(x, y float64, filter Filter, buffer float64) (models.Annotation, bool) {
	buffer = max(buffer, 0)
	p := models.Pt(x, y)
	recs := s.candidates(models.PointBounds(x, y).Expand(buffer))
	slices.SortFunc(recs, func(a, b *record) int { return cmp.Compare(b.seq, a.seq) })
	for _, r := range recs {
		if !r.ann.Shape.Contains(p, buffer) {
			continue
		}
		if filter != nil && !filter(r.ann) {
			continue
		}
		return r.ann.Clone(), true
	}
	return models.Annotation{}, false
}

// GetIntersecting returns every annotation whose bounds intersect b and
// that filter accepts, in insertion order.
func (s *Store) GetIntersecting(b models.Bounds, filter Filter) []models.Annotation {
	recs := s.candidates(b)
	slices.SortFunc(recs, func(x, y *record) int { return cmp.Compare(x.seq, y.seq) })
	var out []models.Annotation
	for _, r := range recs {
		if filter != nil && !filter(r.ann) {
			continue
		}
		out = append(out, r.ann.Clone())
	}
	return out
}

func (s *Store) candidates(b models.Bounds) []*record {
	ids := s.index.Search(b)
	recs := make([]*record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			recs = append(recs, r)
		}
	}
	return recs
}

func (s *Store) sorted(cmpFn func(a, b *record) int) []*record {
	recs := make([]*record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	slices.SortFunc(recs, cmpFn)
	return recs
}

func (s *Store) insert(a models.Annotation) {
	s.seq++
	s.records[a.ID] = &record{ann: a, seq: s.seq}
	s.index.Insert(a.ID, a.Bounds())
}

func (s *Store) reset() {
	s.records = make(map[string]*record)
	s.index.Clear()
}
