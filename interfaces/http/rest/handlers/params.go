package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"
)

// pathParam reads a URL parameter regardless of which router matched
// the request: chi for /api/v2, gorilla/mux for the legacy /api/v1
// surface. Both routers use the same parameter names.
func pathParam(r *http.Request, key string) string {
	if v := chi.URLParam(r, key); v != "" {
		return v
	}
	return mux.Vars(r)[key]
}
