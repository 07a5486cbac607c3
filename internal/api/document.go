package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/starford/annota/internal/checksum"
	"github.com/starford/annota/internal/document"
)

// GetDocument handles GET /api/document.
//
//	@Summary		Export annotations and layers as a document
//	@Tags			document
//	@Produce		json
//	@Success		200	{object}	document.Document
//	@Header			200	{string}	ETag	"SHA-256 checksum of the body"
//	@Security		BearerAuth
//	@Router			/document [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	data, sum, err := h.svc.Snapshot()
	if err != nil {
		writeError(w, "export document", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("ETag", checksum.ETag(sum))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PutDocument handles PUT /api/document.
//
//	@Summary		Import a document with optimistic concurrency
//	@Tags			document
//	@Accept			json
//	@Produce		json
//	@Param			replace		query	bool				false	"Replace the store and clear history instead of adding"
//	@Param			If-Match	header	string				false	"ETag from GET /document"
//	@Param			body		body	document.Document	true	"Document to import"
//	@Success		200		{object}	HistoryState
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/document [put]
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	doc, err := document.Parse(body)
	if err != nil {
		writeError(w, "parse document", err)
		return
	}
	replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
	if err := h.svc.ImportIfMatch(doc, replace, r.Header.Get("If-Match")); err != nil {
		writeError(w, "import document", err)
		return
	}
	_, sum, err := h.svc.Snapshot()
	if err == nil {
		w.Header().Set("ETag", checksum.ETag(sum))
	}
	writeJSON(w, http.StatusOK, h.svc.HistoryState())
}
