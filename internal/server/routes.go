package server

import (
	"net/http"
	"strings"

	"github.com/audiofin/fincast/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// Generated episode audio
	audioPrefix := strings.TrimRight(s.app.Config.Blob.BaseURL, "/") + "/"
	mux.Handle(audioPrefix, http.StripPrefix(audioPrefix, http.FileServer(http.Dir(s.app.BlobStore.Dir()))))

	// API routes - Episodes
	mux.HandleFunc("/api/episodes", s.handleEpisodesRoute)
	mux.HandleFunc("/api/episodes/", s.handleEpisodeRoutes)

	// API routes - Analytics
	mux.HandleFunc("/api/analytics/", s.handleAnalyticsRoutes)

	// API routes - Catalog
	mux.HandleFunc("/api/personas", s.app.CatalogHandler.ListPersonasHandler)
	mux.HandleFunc("/api/templates", s.app.CatalogHandler.ListTemplatesHandler)

	// API routes - System
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.notFoundHandler)

	return mux
}

// handleEpisodesRoute routes /api/episodes requests (list and create)
func (s *Server) handleEpisodesRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.app.EpisodeHandler.CreateHandler(w, r)
	case http.MethodGet:
		s.app.EpisodeHandler.ListHandler(w, r)
	default:
		handlers.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleEpisodeRoutes routes /api/episodes/{id} and its sub-paths
func (s *Server) handleEpisodeRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/episodes/"), "/")
	if rest == "" {
		handlers.WriteError(w, http.StatusNotFound, "episode id is required")
		return
	}

	episodeID, action, _ := strings.Cut(rest, "/")

	switch action {
	case "":
		s.app.EpisodeHandler.GetHandler(w, r, episodeID)
	case "progress":
		s.app.EpisodeHandler.ProgressHandler(w, r, episodeID)
	case "script":
		s.app.EpisodeHandler.ScriptHandler(w, r, episodeID)
	case "cancel":
		s.app.EpisodeHandler.CancelHandler(w, r, episodeID)
	case "regenerate":
		s.app.EpisodeHandler.RegenerateHandler(w, r, episodeID)
	case "sessions":
		s.app.EpisodeHandler.SessionHandler(w, r, episodeID)
	case "rating":
		s.app.EpisodeHandler.RatingHandler(w, r, episodeID)
	default:
		handlers.WriteError(w, http.StatusNotFound, "Not found")
	}
}

// handleAnalyticsRoutes routes /api/analytics/{userId}
func (s *Server) handleAnalyticsRoutes(w http.ResponseWriter, r *http.Request) {
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/analytics/"), "/")
	s.app.AnalyticsHandler.GetHandler(w, r, userID)
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	handlers.WriteError(w, http.StatusNotFound, "Not found")
}
