package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/annota/internal/annotationservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *annotationservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Annotations. Static segments are registered before {id}.
	r.Route("/annotations", func(r chi.Router) {
		r.Get("/", h.ListAnnotations)
		r.Post("/", h.CreateAnnotation)
		r.Get("/at", h.AnnotationAt)
		r.Get("/intersecting", h.IntersectingAnnotations)
		r.Post("/merge", h.MergeAnnotations)
		r.Get("/{id}", h.GetAnnotation)
		r.Put("/{id}", h.UpdateAnnotation)
		r.Delete("/{id}", h.DeleteAnnotation)
		r.Post("/{id}/split", h.SplitAnnotation)
		r.Get("/{id}/mask", h.AnnotationMask)
		r.Get("/{id}/resolve", h.ResolveAnnotation)
	})

	// History.
	r.Get("/history", h.History)
	r.Post("/history/undo", h.Undo)
	r.Post("/history/redo", h.Redo)

	// Layers.
	r.Get("/layers", h.ListLayers)
	r.Post("/layers", h.CreateLayer)
	r.Patch("/layers/{id}", h.UpdateLayer)
	r.Delete("/layers/{id}", h.DeleteLayer)

	// Whole document.
	r.Get("/document", h.GetDocument)
	r.Put("/document", h.PutDocument)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
