package rest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"storyloom-backend/interfaces/http/rest/handlers"
	"storyloom-backend/interfaces/http/rest/middleware"
	v1 "storyloom-backend/interfaces/http/rest/v1"
)

// Router creates and configures the HTTP router
type Router struct {
	stories  *handlers.StoryHandler
	sessions *handlers.SessionHandler
	comments *handlers.CommentHandler
	choices  *handlers.ChoiceHandler
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	stories *handlers.StoryHandler,
	sessions *handlers.SessionHandler,
	comments *handlers.CommentHandler,
	choices *handlers.ChoiceHandler,
	logger *zap.Logger,
) *Router {
	return &Router{
		stories:  stories,
		sessions: sessions,
		comments: comments,
		choices:  choices,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	router.Use(versionMiddleware)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "https://*.storyloom.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	// API v1 routes (legacy gorilla/mux surface, deprecated)
	router.Mount("/api/v1", v1.NewRouter(rt.stories, rt.sessions, rt.comments, rt.logger))

	// API v2 routes (current)
	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Authenticate())

		// Story endpoints
		r.Route("/stories", func(r chi.Router) {
			r.Post("/", rt.stories.CreateStory)
			r.Post("/import", rt.stories.ImportStory)
			r.Get("/", rt.stories.ListStories)
			r.Get("/{storyID}", rt.stories.GetStory)
			r.Delete("/{storyID}", rt.stories.DeleteStory)
			r.Get("/{storyID}/pages/{page}", rt.stories.GetPage)
			r.Post("/{storyID}/nodes", rt.stories.AddNode)
			r.Put("/{storyID}/nodes/{nodeKey}/passage", rt.stories.UpdatePassage)
			r.Post("/{storyID}/publish", rt.stories.PublishStory)

			// Choice linking
			r.Post("/{storyID}/choices", rt.choices.LinkNodes)
			r.Get("/{storyID}/nodes/{nodeKey}/suggest-targets", rt.choices.SuggestTargets)
		})

		// Reading-session endpoints
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", rt.sessions.Open)
			r.Get("/{sessionID}", rt.sessions.GetPosition)
			r.Delete("/{sessionID}", rt.sessions.Close)
			r.Post("/{sessionID}/goto-page", rt.sessions.GoToPage)
			r.Post("/{sessionID}/goto-node", rt.sessions.GoToNode)
			r.Post("/{sessionID}/choice", rt.sessions.FollowChoice)
			r.Post("/{sessionID}/back", rt.sessions.GoBack)
			r.Post("/{sessionID}/restart", rt.sessions.Restart)
			r.Put("/{sessionID}/passage", rt.sessions.EditPassage)
			r.Post("/{sessionID}/nodes", rt.sessions.AddNode)
			r.Post("/{sessionID}/save", rt.sessions.Save)
			r.Post("/{sessionID}/generate", rt.sessions.Generate)

			// Comment slice for the session's current page
			r.Get("/{sessionID}/comments", rt.comments.List)
			r.Post("/{sessionID}/comments", rt.comments.Add)
			r.Put("/{sessionID}/comments/{commentID}", rt.comments.Update)
			r.Delete("/{sessionID}/comments/{commentID}", rt.comments.Delete)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := "v2"
		if strings.Contains(r.URL.Path, "/api/v1") {
			version = "v1"
		}

		w.Header().Set("X-API-Version", version)
		w.Header().Set("X-API-Latest", "v2")
		w.Header().Set("X-API-Deprecated", "false")

		if version == "v1" {
			w.Header().Set("X-API-Deprecated", "true")
			w.Header().Set("X-API-Sunset-Date", "2026-03-01")
		}

		next.ServeHTTP(w, r)
	})
}
