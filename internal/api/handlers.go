package api

import (
	"image/png"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/annota/internal/annotationservice"
	"github.com/starford/annota/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *annotationservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *annotationservice.Service) *Handler {
	return &Handler{svc: svc}
}

// floatParam parses query parameter name. ok is false when it is present but
// not a number.
func floatParam(r *http.Request, name string) (v float64, present, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, true, err == nil
}

func boolParam(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// ListAnnotations handles GET /api/annotations.
//
//	@Summary		List annotations in insertion order
//	@Tags			annotations
//	@Produce		json
//	@Param			layer	query		string	false	"Only annotations resolved to this layer"
//	@Param			kind	query		string	false	"Only this shape kind"
//	@Param			visible	query		bool	false	"Only annotations on visible layers"
//	@Success		200		{object}	AnnotationListResponse
//	@Security		BearerAuth
//	@Router			/annotations [get]
func (h *Handler) ListAnnotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := h.svc.List(annotationservice.ListFilter{
		Layer:       q.Get("layer"),
		Kind:        models.Kind(q.Get("kind")),
		VisibleOnly: boolParam(r, "visible"),
	})
	writeJSON(w, http.StatusOK, AnnotationListResponse{Annotations: items, Total: len(items)})
}

// GetAnnotation handles GET /api/annotations/{id}.
//
//	@Summary		Get a single annotation
//	@Tags			annotations
//	@Produce		json
//	@Param			id	path		string	true	"Annotation id"
//	@Success		200	{object}	Annotation
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [get]
func (h *Handler) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateAnnotation handles POST /api/annotations.
//
//	@Summary		Create an annotation; a missing id is generated
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			body	body		Annotation	true	"Annotation to create"
//	@Success		201		{object}	Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		423		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations [post]
func (h *Handler) CreateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req Annotation
	if !readJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Create(req)
	if err != nil {
		writeError(w, "create annotation", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAnnotation handles PUT /api/annotations/{id}.
//
//	@Summary		Replace an annotation
//	@Tags			annotations
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Annotation id"
//	@Param			body	body		Annotation	true	"Replacement"
//	@Success		200		{object}	Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		423		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [put]
func (h *Handler) UpdateAnnotation(w http.ResponseWriter, r *http.Request) {
	var req Annotation
	if !readJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Update(chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, "update annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAnnotation handles DELETE /api/annotations/{id}.
//
//	@Summary		Delete an annotation
//	@Tags			annotations
//	@Param			id	path	string	true	"Annotation id"
//	@Success		204	"Annotation deleted"
//	@Failure		404	{object}	errResponse
//	@Failure		423	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id} [delete]
func (h *Handler) DeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete annotation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AnnotationAt handles GET /api/annotations/at.
//
//	@Summary		Topmost annotation at a point
//	@Tags			annotations
//	@Produce		json
//	@Param			x		query		number	true	"X in image space"
//	@Param			y		query		number	true	"Y in image space"
//	@Param			buffer	query		number	false	"Hit tolerance"
//	@Param			visible	query		bool	false	"Ignore annotations on hidden layers"
//	@Success		200		{object}	Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/at [get]
func (h *Handler) AnnotationAt(w http.ResponseWriter, r *http.Request) {
	x, xSet, xOK := floatParam(r, "x")
	y, ySet, yOK := floatParam(r, "y")
	if !xSet || !ySet || !xOK || !yOK {
		writeJSON(w, http.StatusBadRequest, errorBody("numeric query parameters 'x' and 'y' are required"))
		return
	}
	var buffer *float64
	if b, set, ok := floatParam(r, "buffer"); !ok || (set && b < 0) {
		writeJSON(w, http.StatusBadRequest, errorBody("'buffer' must be a non-negative number"))
		return
	} else if set {
		buffer = &b
	}
	a, err := h.svc.At(x, y, buffer, boolParam(r, "visible"))
	if err != nil {
		writeError(w, "annotation at", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// IntersectingAnnotations handles GET /api/annotations/intersecting.
//
//	@Summary		Annotations whose bounds meet a box
//	@Tags			annotations
//	@Produce		json
//	@Param			minX	query		number	true	"Box min X"
//	@Param			minY	query		number	true	"Box min Y"
//	@Param			maxX	query		number	true	"Box max X"
//	@Param			maxY	query		number	true	"Box max Y"
//	@Param			visible	query		bool	false	"Ignore annotations on hidden layers"
//	@Success		200		{object}	AnnotationListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/intersecting [get]
func (h *Handler) IntersectingAnnotations(w http.ResponseWriter, r *http.Request) {
	var vals [4]float64
	for i, name := range []string{"minX", "minY", "maxX", "maxY"} {
		v, set, ok := floatParam(r, name)
		if !set || !ok {
			writeJSON(w, http.StatusBadRequest, errorBody("numeric query parameter '"+name+"' is required"))
			return
		}
		vals[i] = v
	}
	b := models.BoundsOf(models.Pt(vals[0], vals[1]), models.Pt(vals[2], vals[3]))
	items := h.svc.Intersecting(b, boolParam(r, "visible"))
	writeJSON(w, http.StatusOK, AnnotationListResponse{Annotations: items, Total: len(items)})
}

// MergeAnnotations handles POST /api/annotations/merge.
//
//	@Summary		Merge annotations into one polygon (one undo step)
//	@Tags			geometry
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MergeRequest	true	"Ids to merge"
//	@Success		201		{object}	Annotation
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/merge [post]
func (h *Handler) MergeAnnotations(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.Merge(req.IDs)
	if err != nil {
		writeError(w, "merge annotations", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// SplitAnnotation handles POST /api/annotations/{id}/split.
//
//	@Summary		Cut an annotation along a polyline
//	@Tags			geometry
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Annotation id"
//	@Param			body	body		SplitRequest	true	"Cut line"
//	@Success		201		{object}	SplitResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id}/split [post]
func (h *Handler) SplitAnnotation(w http.ResponseWriter, r *http.Request) {
	var req SplitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pieces, err := h.svc.Split(chi.URLParam(r, "id"), req.Line)
	if err != nil {
		writeError(w, "split annotation", err)
		return
	}
	writeJSON(w, http.StatusCreated, SplitResponse{Pieces: pieces})
}

// AnnotationMask handles GET /api/annotations/{id}/mask.
//
//	@Summary		Rasterize an annotation into a PNG alpha mask
//	@Tags			geometry
//	@Produce		png
//	@Param			id		path	string	true	"Annotation id"
//	@Param			width	query	int		false	"Mask width; defaults to the shape's right edge"
//	@Param			height	query	int		false	"Mask height; defaults to the shape's bottom edge"
//	@Param			soft	query	bool	false	"Anti-aliased coverage"
//	@Success		200
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id}/mask [get]
func (h *Handler) AnnotationMask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width, _ := strconv.Atoi(q.Get("width"))
	height, _ := strconv.Atoi(q.Get("height"))
	id := chi.URLParam(r, "id")
	img, err := h.svc.Mask(id, width, height, boolParam(r, "soft"))
	if err != nil {
		writeError(w, "annotation mask", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		slog.Error("png encode failed", slog.String("id", id), slog.String("error", err.Error()))
	}
}

// ResolveAnnotation handles GET /api/annotations/{id}/resolve.
//
//	@Summary		Layer, visibility, editability and effective opacity
//	@Tags			layers
//	@Produce		json
//	@Param			id	path		string	true	"Annotation id"
//	@Success		200	{object}	Resolution
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/annotations/{id}/resolve [get]
func (h *Handler) ResolveAnnotation(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Resolve(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "resolve annotation", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// History handles GET /api/history.
//
//	@Summary		Undo/redo state
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	HistoryState
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.HistoryState())
}

// Undo handles POST /api/history/undo.
//
//	@Summary		Revert the latest change
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	UndoResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	st, ok, err := h.svc.Undo()
	if err != nil {
		writeError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, UndoResponse{Applied: ok, State: st})
}

// Redo handles POST /api/history/redo.
//
//	@Summary		Re-apply the latest undone change
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	UndoResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	st, ok, err := h.svc.Redo()
	if err != nil {
		writeError(w, "redo", err)
		return
	}
	writeJSON(w, http.StatusOK, UndoResponse{Applied: ok, State: st})
}
