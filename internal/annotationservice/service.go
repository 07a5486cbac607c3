// Package annotationservice is the single entry point the transports use to
// reach the annotation engine. It serialises every call, turns infeasible
// geometry into errors, and enforces layer locks.
package annotationservice

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/annota/internal/apperr"
	"github.com/starford/annota/internal/checksum"
	"github.com/starford/annota/internal/document"
	"github.com/starford/annota/internal/geometry"
	"github.com/starford/annota/internal/history"
	"github.com/starford/annota/internal/layers"
	"github.com/starford/annota/internal/models"
	"github.com/starford/annota/internal/store"
)

// DefaultHitBuffer is the pick tolerance used when a caller gives none.
const DefaultHitBuffer = 2.0

// maxMaskSide bounds rasterized masks in each dimension.
const maxMaskSide = 8192

// Notifier receives every committed change. It is called with the service
// lock held and must not call back into the service.
type Notifier interface {
	AnnotationsChanged(ev store.Event)
	LayerChanged(ev layers.Event)
	HistoryChanged(st history.State)
}

// Service wraps the store, layer manager and history manager.
type Service struct {
	mu        sync.Mutex
	store     *store.Store
	layers    *layers.Manager
	history   *history.Manager
	hitBuffer float64
	geoOpts   []geometry.Option
	newID     func() string
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	logger      *slog.Logger
	hitBuffer   float64
	splitWidth  float64
	newID       func() string
	historyOpts []history.Option
}

// WithLogger sets the logger passed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// WithHitBuffer sets the default pick tolerance.
func WithHitBuffer(b float64) Option {
	return func(o *serviceOptions) { o.hitBuffer = b }
}

// WithSplitWidth sets the width of the band split lines remove.
func WithSplitWidth(w float64) Option {
	return func(o *serviceOptions) { o.splitWidth = w }
}

// WithIDGenerator replaces uuid generation for new annotations.
func WithIDGenerator(fn func() string) Option {
	return func(o *serviceOptions) { o.newID = fn }
}

// WithHistory passes options to the history manager.
func WithHistory(opts ...history.Option) Option {
	return func(o *serviceOptions) { o.historyOpts = append(o.historyOpts, opts...) }
}

// New builds a service with an empty store and the reserved layers.
func New(opts ...Option) *Service {
	o := serviceOptions{
		logger:     slog.New(slog.DiscardHandler),
		hitBuffer:  DefaultHitBuffer,
		splitWidth: geometry.DefaultSplitWidth,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Service{
		store:     store.New(store.WithLogger(o.logger)),
		layers:    layers.NewManager(layers.WithLogger(o.logger)),
		history:   history.NewManager(append([]history.Option{history.WithLogger(o.logger)}, o.historyOpts...)...),
		hitBuffer: max(o.hitBuffer, 0),
		geoOpts:   []geometry.Option{geometry.WithSplitWidth(o.splitWidth), geometry.WithIDGenerator(o.newID)},
		newID:     o.newID,
		logger:    o.logger,
	}
}

// Subscribe forwards every store, layer and history change to n and
// returns a function that stops forwarding.
func (s *Service) Subscribe(n Notifier) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancels := []func(){
		s.store.Observe(n.AnnotationsChanged),
		s.layers.Observe(n.LayerChanged),
		s.history.Observe(n.HistoryChanged),
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, c := range cancels {
			c()
		}
	}
}

// ListFilter narrows List.
type ListFilter struct {
	Layer       string
	Kind        models.Kind
	VisibleOnly bool
}

// List returns annotations in insertion order.
func (s *Service) List(f ListFilter) []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.store.All()
	if f == (ListFilter{}) {
		return all
	}
	out := all[:0]
	for _, a := range all {
		if s.accepts(f, a) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Service) accepts(f ListFilter, a models.Annotation) bool {
	if f.Kind != "" && a.Kind() != f.Kind {
		return false
	}
	if f.Layer == "" && !f.VisibleOnly {
		return true
	}
	l := s.layers.LayerForAnnotation(a)
	if f.Layer != "" && l.ID != f.Layer {
		return false
	}
	return !f.VisibleOnly || l.Visible
}

// Get returns one annotation.
func (s *Service) Get(id string) (models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *Service) get(id string) (models.Annotation, error) {
	a, ok := s.store.Get(id)
	if !ok {
		return models.Annotation{}, fmt.Errorf("annotation %q: %w", id, apperr.ErrNotFound)
	}
	return a, nil
}

// editable refuses annotations resolved to a locked layer.
func (s *Service) editable(a models.Annotation) error {
	if l := s.layers.LayerForAnnotation(a); l.Locked {
		return fmt.Errorf("annotation %q on layer %q: %w", a.ID, l.ID, apperr.ErrLocked)
	}
	return nil
}

// Create adds a through history. An empty id is generated.
func (s *Service) Create(a models.Annotation) (models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = s.newID()
	}
	if err := a.Validate(); err != nil {
		return models.Annotation{}, fmt.Errorf("create %q: %w", a.ID, err)
	}
	if err := s.editable(a); err != nil {
		return models.Annotation{}, err
	}
	if err := s.history.Execute(history.NewCreateCommand(s.store, a)); err != nil {
		return models.Annotation{}, err
	}
	return s.get(a.ID)
}

// Update replaces annotation id with a. An empty a.ID takes id.
func (s *Service) Update(id string, a models.Annotation) (models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = id
	}
	if a.ID != id {
		return models.Annotation{}, fmt.Errorf("update %q with %q: %w", id, a.ID, apperr.ErrIDMismatch)
	}
	if err := a.Validate(); err != nil {
		return models.Annotation{}, fmt.Errorf("update %q: %w", id, err)
	}
	current, err := s.get(id)
	if err != nil {
		return models.Annotation{}, err
	}
	if err := s.editable(current); err != nil {
		return models.Annotation{}, err
	}
	if err := s.editable(a); err != nil {
		return models.Annotation{}, err
	}
	if err := s.history.Execute(history.NewUpdateCommand(s.store, current, a)); err != nil {
		return models.Annotation{}, err
	}
	return s.get(id)
}

// Delete removes annotation id through history.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.get(id)
	if err != nil {
		return err
	}
	if err := s.editable(current); err != nil {
		return err
	}
	return s.history.Execute(history.NewDeleteCommand(s.store, current))
}

// At returns the topmost annotation at (x, y). A nil buffer uses the
// configured default.
func (s *Service) At(x, y float64, buffer *float64, visibleOnly bool) (models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.hitBuffer
	if buffer != nil {
		b = *buffer
	}
	var filter store.Filter
	if visibleOnly {
		filter = func(a models.Annotation) bool { return layers.IsAnnotationVisible(s.layers, a) }
	}
	a, ok := s.store.GetAt(x, y, filter, b)
	if !ok {
		return models.Annotation{}, fmt.Errorf("nothing at (%g, %g): %w", x, y, apperr.ErrNotFound)
	}
	return a, nil
}

// Intersecting returns annotations whose bounds meet b.
func (s *Service) Intersecting(b models.Bounds, visibleOnly bool) []models.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var filter store.Filter
	if visibleOnly {
		filter = func(a models.Annotation) bool { return layers.IsAnnotationVisible(s.layers, a) }
	}
	return s.store.GetIntersecting(b, filter)
}

// Merge replaces the annotations ids with their union as one undo step.
func (s *Service) Merge(ids []string) (models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) < 2 {
		return models.Annotation{}, fmt.Errorf("merge needs at least two annotations: %w", apperr.ErrInfeasible)
	}
	inputs := make([]models.Annotation, 0, len(ids))
	for _, id := range ids {
		a, err := s.get(id)
		if err != nil {
			return models.Annotation{}, err
		}
		if err := s.editable(a); err != nil {
			return models.Annotation{}, err
		}
		inputs = append(inputs, a)
	}
	merged, ok := geometry.Merge(inputs, s.geoOpts...)
	if !ok {
		return models.Annotation{}, fmt.Errorf("merge %v: %w", ids, apperr.ErrInfeasible)
	}

	cmds := make([]history.Command, 0, len(inputs)+1)
	for _, a := range inputs {
		cmds = append(cmds, history.NewDeleteCommand(s.store, a))
	}
	cmds = append(cmds, history.NewCreateCommand(s.store, merged))
	if err := s.history.Execute(history.NewBatchCommand("Merge annotations", cmds...)); err != nil {
		return models.Annotation{}, err
	}
	return s.get(merged.ID)
}

// Split cuts annotation id along line.
func (s *Service) Split(id string, line []models.Point) ([]models.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if err := s.editable(src); err != nil {
		return nil, err
	}
	cmd, ok := history.NewSplitCommand(s.store, src, line, s.geoOpts...)
	if !ok {
		return nil, fmt.Errorf("split %q: %w", id, apperr.ErrInfeasible)
	}
	if err := s.history.Execute(cmd); err != nil {
		return nil, err
	}
	return cmd.Pieces(), nil
}

// Undo reverts the latest change.
func (s *Service) Undo() (history.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.history.Undo()
	return s.history.State(), ok, err
}

// Redo re-applies the latest undone change.
func (s *Service) Redo() (history.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.history.Redo()
	return s.history.State(), ok, err
}

// HistoryState returns the undo/redo summary.
func (s *Service) HistoryState() history.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.State()
}

// Layers returns every layer in stacking order.
func (s *Service) Layers() []layers.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layers.LayersByZIndex()
}

// CreateLayer adds a layer.
func (s *Service) CreateLayer(id string, cfg layers.Config) (layers.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.RuleSpec != nil {
		if err := cfg.RuleSpec.Validate(); err != nil {
			return layers.Layer{}, fmt.Errorf("layer %q rule: %w", id, err)
		}
	}
	return s.layers.CreateLayer(id, cfg)
}

// UpdateLayer applies the set fields of patch.
func (s *Service) UpdateLayer(id string, patch layers.Config) (layers.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.RuleSpec != nil {
		if err := patch.RuleSpec.Validate(); err != nil {
			return layers.Layer{}, fmt.Errorf("layer %q rule: %w", id, err)
		}
	}
	l, ok := s.layers.UpdateLayer(id, patch)
	if !ok {
		return layers.Layer{}, fmt.Errorf("layer %q: %w", id, apperr.ErrNotFound)
	}
	return l, nil
}

// SetLayerVisibility shows or hides layer id.
func (s *Service) SetLayerVisibility(id string, visible bool) (layers.Layer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers.SetLayerVisibility(id, visible)
	if !ok {
		return layers.Layer{}, fmt.Errorf("layer %q: %w", id, apperr.ErrNotFound)
	}
	return l, nil
}

// DeleteLayer removes a user layer.
func (s *Service) DeleteLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if layers.IsReserved(id) {
		return fmt.Errorf("layer %q: %w", id, apperr.ErrReservedLayer)
	}
	if !s.layers.DeleteLayer(id) {
		return fmt.Errorf("layer %q: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Resolution describes how an annotation is presented.
type Resolution struct {
	Layer    layers.Layer `json:"layer"`
	Visible  bool         `json:"visible"`
	Editable bool         `json:"editable"`
	Opacity  float64      `json:"opacity"`
}

// Resolve reports the layer, visibility, editability and effective opacity
// of annotation id.
func (s *Service) Resolve(id string) (Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(id)
	if err != nil {
		return Resolution{}, err
	}
	l := s.layers.LayerForAnnotation(a)
	return Resolution{
		Layer:    l,
		Visible:  l.Visible,
		Editable: !l.Locked,
		Opacity:  layers.EffectiveOpacity(s.layers, a),
	}, nil
}

// Import loads doc. With replace the store is swapped wholesale and history
// is cleared; otherwise the annotations are added as one undoable step.
// Document layers are created, or applied to existing layers.
func (s *Service) Import(doc *document.Document, replace bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.importDoc(doc, replace)
}

// ImportIfMatch imports doc only when the current snapshot checksum
// satisfies the If-Match value ifMatch. It fails with apperr.ErrConflict
// otherwise.
func (s *Service) ImportIfMatch(doc *document.Document, replace bool, ifMatch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, sum, err := s.snapshot()
	if err != nil {
		return err
	}
	if !checksum.Matches(ifMatch, sum) {
		return fmt.Errorf("import: document changed: %w", apperr.ErrConflict)
	}
	return s.importDoc(doc, replace)
}

func (s *Service) importDoc(doc *document.Document, replace bool) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if !replace {
		for _, a := range doc.Annotations {
			if s.store.Has(a.ID) {
				return fmt.Errorf("import %q: %w", a.ID, apperr.ErrDuplicateID)
			}
		}
	}

	for _, l := range doc.Layers {
		if _, exists := s.layers.Layer(l.ID); exists {
			s.layers.UpdateLayer(l.ID, l.Config())
			continue
		}
		if _, err := s.layers.CreateLayer(l.ID, l.Config()); err != nil {
			return err
		}
	}

	if replace {
		if err := s.store.AddAll(doc.Annotations, true); err != nil {
			return err
		}
		s.history.Clear()
		s.logger.Info("service: document imported", slog.Int("annotations", len(doc.Annotations)), slog.Bool("replace", true))
		return nil
	}

	if err := s.history.BeginBatch("Import document"); err != nil {
		return err
	}
	for _, a := range doc.Annotations {
		if err := s.history.Execute(history.NewCreateCommand(s.store, a)); err != nil {
			if abortErr := s.history.AbortBatch(); abortErr != nil {
				s.logger.Error("service: import rollback failed", slog.String("error", abortErr.Error()))
			}
			return err
		}
	}
	s.logger.Info("service: document imported", slog.Int("annotations", len(doc.Annotations)), slog.Bool("replace", false))
	return s.history.EndBatch()
}

// Export captures the store and layers as a document.
func (s *Service) Export() *document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return document.New(s.store.All(), s.layers.AllLayers())
}

// Snapshot returns the encoded document and its checksum.
func (s *Service) Snapshot() ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Service) snapshot() ([]byte, string, error) {
	data, err := document.Marshal(document.New(s.store.All(), s.layers.AllLayers()))
	if err != nil {
		return nil, "", fmt.Errorf("snapshot: %w", err)
	}
	return data, checksum.Sum(data), nil
}

// Mask rasterizes annotation id into a w×h alpha mask in image space. Zero
// dimensions default to the annotation's far corner. soft selects
// anti-aliased coverage.
func (s *Service) Mask(id string, w, h int, soft bool) (*image.Alpha, error) {
	s.mu.Lock()
	a, err := s.get(id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	coords, ok := geometry.ToPolygonCoordinates(a)
	if !ok {
		return nil, fmt.Errorf("mask %q: %s has no area: %w", id, a.Kind(), apperr.ErrInfeasible)
	}
	b := coords.Bounds()
	if w <= 0 {
		w = int(math.Ceil(b.MaxX))
	}
	if h <= 0 {
		h = int(math.Ceil(b.MaxY))
	}
	if w <= 0 || h <= 0 || w > maxMaskSide || h > maxMaskSide {
		return nil, fmt.Errorf("mask %q: size %dx%d out of range: %w", id, w, h, apperr.ErrInfeasible)
	}
	if soft {
		return geometry.Coverage(coords, w, h), nil
	}
	return geometry.Rasterize(coords, w, h), nil
}
