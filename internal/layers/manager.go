package layers

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/annota/internal/apperr"
	"github.com/starford/annota/internal/models"
	"github.com/starford/annota/internal/observe"
)

// EventType names a layer change.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event reports one layer change. For deletions Layer is the removed layer.
type Event struct {
	Type  EventType `json:"type"`
	Layer Layer     `json:"layer"`
}

// Manager owns the layer set. It is not safe for concurrent use.
type Manager struct {
	layers    map[string]*Layer
	order     []string
	observers observe.List[Event]
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a manager holding only the reserved layers.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		layers: make(map[string]*Layer),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.put(&Layer{ID: ImageLayerID, Name: "Image", Visible: true, Locked: true, Opacity: 1, ZIndex: imageZIndex})
	m.put(&Layer{ID: DefaultLayerID, Name: "Default", Visible: true, Opacity: 1})
	return m
}

func (m *Manager) put(l *Layer) {
	m.layers[l.ID] = l
	m.order = append(m.order, l.ID)
}

// CreateLayer adds a layer with defaults overridden by cfg. It fails with
// apperr.ErrDuplicateLayer when id exists.
func (m *Manager) CreateLayer(id string, cfg Config) (Layer, error) {
	if id == "" {
		return Layer{}, fmt.Errorf("layers: create: id is required")
	}
	if _, ok := m.layers[id]; ok {
		return Layer{}, fmt.Errorf("layers: create %q: %w", id, apperr.ErrDuplicateLayer)
	}
	l := &Layer{ID: id, Name: id, Visible: true, Opacity: 1}
	cfg.apply(l)
	m.put(l)
	out := l.clone()
	m.emit(Event{Type: EventCreated, Layer: out})
	return out, nil
}

// UpdateLayer merges the set fields of patch into the layer. An unknown id
// is logged and ignored.
func (m *Manager) UpdateLayer(id string, patch Config) (Layer, bool) {
	l, ok := m.layers[id]
	if !ok {
		m.logger.Warn("layers: update: layer not found", slog.String("id", id))
		return Layer{}, false
	}
	patch.apply(l)
	out := l.clone()
	m.emit(Event{Type: EventUpdated, Layer: out})
	return out, true
}

// DeleteLayer removes a user layer and reports whether it did. Reserved
// and unknown ids are logged and ignored.
func (m *Manager) DeleteLayer(id string) bool {
	if IsReserved(id) {
		m.logger.Warn("layers: delete: reserved layer", slog.String("id", id))
		return false
	}
	l, ok := m.layers[id]
	if !ok {
		m.logger.Warn("layers: delete: layer not found", slog.String("id", id))
		return false
	}
	delete(m.layers, id)
	m.order = slices.DeleteFunc(m.order, func(o string) bool { return o == id })
	m.emit(Event{Type: EventDeleted, Layer: l.clone()})
	return true
}

// SetLayerVisibility shows or hides a layer.
func (m *Manager) SetLayerVisibility(id string, visible bool) (Layer, bool) {
	return m.UpdateLayer(id, Config{Visible: &visible})
}

// SetLayerLocked locks or unlocks a layer.
func (m *Manager) SetLayerLocked(id string, locked bool) (Layer, bool) {
	return m.UpdateLayer(id, Config{Locked: &locked})
}

// SetLayerZIndex moves a layer in the stacking order.
func (m *Manager) SetLayerZIndex(id string, z int) (Layer, bool) {
	return m.UpdateLayer(id, Config{ZIndex: &z})
}

// SetLayerOpacity sets a layer's opacity, clamped to [0,1].
func (m *Manager) SetLayerOpacity(id string, opacity float64) (Layer, bool) {
	opacity = clamp01(opacity)
	return m.UpdateLayer(id, Config{Opacity: &opacity})
}

// Layer returns the layer with the given id.
func (m *Manager) Layer(id string) (Layer, bool) {
	l, ok := m.layers[id]
	if !ok {
		return Layer{}, false
	}
	return l.clone(), true
}

// AllLayers returns every layer in insertion order.
func (m *Manager) AllLayers() []Layer {
	out := make([]Layer, len(m.order))
	for i, id := range m.order {
		out[i] = m.layers[id].clone()
	}
	return out
}

// VisibleLayers returns the visible layers in insertion order.
func (m *Manager) VisibleLayers() []Layer {
	return slices.DeleteFunc(m.AllLayers(), func(l Layer) bool { return !l.Visible })
}

// LayersByZIndex returns every layer ascending by z-index. Ties keep
// insertion order.
func (m *Manager) LayersByZIndex() []Layer {
	out := m.AllLayers()
	slices.SortStableFunc(out, func(a, b Layer) int { return cmp.Compare(a.ZIndex, b.ZIndex) })
	return out
}

// IsLayerVisible reports whether id is visible. Unknown layers count as
// visible.
func (m *Manager) IsLayerVisible(id string) bool {
	l, ok := m.layers[id]
	return !ok || l.Visible
}

// IsLayerLocked reports whether id is locked. Unknown layers count as
// unlocked.
func (m *Manager) IsLayerLocked(id string) bool {
	l, ok := m.layers[id]
	return ok && l.Locked
}

// LayerForAnnotation resolves a's layer: an existing layer named by its
// "layer" property, else the first layer in insertion order whose rule
// accepts it, else the default layer.
func (m *Manager) LayerForAnnotation(a models.Annotation) Layer {
	if id, ok := a.Properties.String(PropertyKey); ok {
		if l, ok := m.layers[id]; ok {
			return l.clone()
		}
	}
	for _, id := range m.order {
		l := m.layers[id]
		if l.Rule != nil && l.Rule(a) {
			return l.clone()
		}
	}
	return m.layers[DefaultLayerID].clone()
}

// Observe registers fn for layer events and returns a function that
// unregisters it.
func (m *Manager) Observe(fn func(Event)) (cancel func()) {
	return m.observers.Add(fn)
}

func (m *Manager) emit(ev Event) {
	m.observers.Notify(ev, m.logger, "layers")
}
