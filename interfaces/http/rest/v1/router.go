// Package v1 keeps the legacy gorilla/mux API surface alive for
// clients that have not migrated to /api/v2. Handlers are shared with
// the v2 router; only the routing shape differs.
package v1

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"storyloom-backend/interfaces/http/rest/handlers"
	"storyloom-backend/interfaces/http/rest/middleware"
	"storyloom-backend/pkg/common"
)

// NewRouter creates the v1 API router
func NewRouter(
	storyHandler *handlers.StoryHandler,
	sessionHandler *handlers.SessionHandler,
	commentHandler *handlers.CommentHandler,
	logger *zap.Logger,
) *mux.Router {
	router := mux.NewRouter()
	v1 := router.PathPrefix("/api/v1").Subrouter()

	v1.Use(middleware.Logger(logger))
	v1.Use(middleware.Authenticate())
	v1.Use(versionHeaders)

	// Story endpoints
	v1.HandleFunc("/stories", storyHandler.CreateStory).Methods("POST")
	v1.HandleFunc("/stories", storyHandler.ListStories).Methods("GET")
	v1.HandleFunc("/stories/import", storyHandler.ImportStory).Methods("POST")
	v1.HandleFunc("/stories/{storyID}", storyHandler.GetStory).Methods("GET")
	v1.HandleFunc("/stories/{storyID}", storyHandler.DeleteStory).Methods("DELETE")
	v1.HandleFunc("/stories/{storyID}/pages/{page}", storyHandler.GetPage).Methods("GET")

	// Session endpoints
	v1.HandleFunc("/sessions", sessionHandler.Open).Methods("POST")
	v1.HandleFunc("/sessions/{sessionID}", sessionHandler.GetPosition).Methods("GET")
	v1.HandleFunc("/sessions/{sessionID}", sessionHandler.Close).Methods("DELETE")
	v1.HandleFunc("/sessions/{sessionID}/goto-page", sessionHandler.GoToPage).Methods("POST")
	v1.HandleFunc("/sessions/{sessionID}/save", sessionHandler.Save).Methods("POST")

	// Comment endpoints
	v1.HandleFunc("/sessions/{sessionID}/comments", commentHandler.List).Methods("GET")
	v1.HandleFunc("/sessions/{sessionID}/comments", commentHandler.Add).Methods("POST")

	// Health check
	v1.HandleFunc("/health", healthCheck).Methods("GET")

	return router
}

// versionHeaders adds API version headers to responses
func versionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-API-Version", "v1")
		w.Header().Set("X-API-Deprecated", "true")
		next.ServeHTTP(w, r)
	})
}

// healthCheck provides a health check endpoint
func healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondWithMeta(w, http.StatusOK, map[string]string{"status": "healthy"}, &common.MetaInfo{
		RequestID: common.ExtractRequestID(r),
		Version:   "v1",
	})
}
