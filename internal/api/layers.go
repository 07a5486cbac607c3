package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListLayers handles GET /api/layers.
//
//	@Summary		List layers in stacking order
//	@Tags			layers
//	@Produce		json
//	@Success		200	{object}	LayerListResponse
//	@Security		BearerAuth
//	@Router			/layers [get]
func (h *Handler) ListLayers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LayerListResponse{Layers: h.svc.Layers()})
}

// CreateLayer handles POST /api/layers.
//
//	@Summary		Create a layer
//	@Tags			layers
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateLayerRequest	true	"Layer to create"
//	@Success		201		{object}	Layer
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layers [post]
func (h *Handler) CreateLayer(w http.ResponseWriter, r *http.Request) {
	var req CreateLayerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := h.svc.CreateLayer(req.ID, req.Config)
	if err != nil {
		writeError(w, "create layer", err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// UpdateLayer handles PATCH /api/layers/{id}.
//
//	@Summary		Update the given fields of a layer
//	@Tags			layers
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Layer id"
//	@Param			body	body		UpdateLayerRequest	true	"Fields to change"
//	@Success		200		{object}	Layer
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layers/{id} [patch]
func (h *Handler) UpdateLayer(w http.ResponseWriter, r *http.Request) {
	var req UpdateLayerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := h.svc.UpdateLayer(chi.URLParam(r, "id"), req.Config)
	if err != nil {
		writeError(w, "update layer", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// DeleteLayer handles DELETE /api/layers/{id}.
//
//	@Summary		Delete a user layer
//	@Tags			layers
//	@Param			id	path	string	true	"Layer id"
//	@Success		204	"Layer deleted"
//	@Failure		403	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/layers/{id} [delete]
func (h *Handler) DeleteLayer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteLayer(chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete layer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
