package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
	"github.com/audiofin/fincast/internal/orchestrator"
)

// EpisodeHandler exposes the episode lifecycle over HTTP
type EpisodeHandler struct {
	orch     *orchestrator.Orchestrator
	storage  interfaces.StorageManager
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewEpisodeHandler creates a new episode handler
func NewEpisodeHandler(orch *orchestrator.Orchestrator, storage interfaces.StorageManager, logger arbor.ILogger) *EpisodeHandler {
	return &EpisodeHandler{
		orch:     orch,
		storage:  storage,
		validate: validator.New(),
		logger:   logger,
	}
}

type createEpisodeRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	EpisodeType string `json:"episode_type" validate:"required"`
}

type episodeStatusResponse struct {
	EpisodeID     string `json:"episode_id"`
	Status        string `json:"status"`
	Stage         string `json:"stage"`
	EpisodeNumber int    `json:"episode_number,omitempty"`
	Error         string `json:"error,omitempty"`
}

// CreateHandler starts a new episode generation.
// POST /api/episodes {user_id, episode_type}
func (h *EpisodeHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createEpisodeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "user_id and episode_type are required")
		return
	}

	episode, err := h.orch.Start(r.Context(), req.UserID, req.EpisodeType)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrTemplateNotFound):
			WriteError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, models.ErrGenerationInProgress):
			WriteError(w, http.StatusConflict, err.Error())
		default:
			// The episode row, when one was created, records the failure
			if episode != nil {
				WriteJSON(w, http.StatusInternalServerError, episodeStatusResponse{
					EpisodeID: episode.ID,
					Status:    string(episode.Status),
					Stage:     string(episode.Stage),
					Error:     episode.Error,
				})
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusAccepted, episodeStatusResponse{
		EpisodeID:     episode.ID,
		Status:        string(episode.Status),
		Stage:         string(episode.Stage),
		EpisodeNumber: episode.EpisodeNumber,
	})
}

// ListHandler lists a user's episodes.
// GET /api/episodes?user_id=...&episode_type=...&status=...
func (h *EpisodeHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.EpisodeListOptions{
		UserID:      r.URL.Query().Get("user_id"),
		EpisodeType: r.URL.Query().Get("episode_type"),
		Status:      models.EpisodeStatus(r.URL.Query().Get("status")),
	}
	if opts.UserID == "" {
		WriteError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	episodes, err := h.storage.EpisodeStorage().ListEpisodes(r.Context(), opts)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"episodes": episodes,
		"count":    len(episodes),
	})
}

// GetHandler returns the full episode row.
// GET /api/episodes/{id}
func (h *EpisodeHandler) GetHandler(w http.ResponseWriter, r *http.Request, episodeID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	episode, err := h.storage.EpisodeStorage().GetEpisode(r.Context(), episodeID)
	if err != nil {
		h.writeEpisodeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, episode)
}

// ProgressHandler returns status and coarse stage.
// GET /api/episodes/{id}/progress
func (h *EpisodeHandler) ProgressHandler(w http.ResponseWriter, r *http.Request, episodeID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	episode, err := h.orch.GetProgress(r.Context(), episodeID)
	if err != nil {
		h.writeEpisodeError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, episodeStatusResponse{
		EpisodeID: episode.ID,
		Status:    string(episode.Status),
		Stage:     string(episode.Stage),
		Error:     episode.Error,
	})
}

// ScriptHandler returns the episode script. A failed audio stage never
// hides a successful script; when the script field is unset, persisted
// insights are returned as the partial view.
// GET /api/episodes/{id}/script
func (h *EpisodeHandler) ScriptHandler(w http.ResponseWriter, r *http.Request, episodeID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	episode, err := h.storage.EpisodeStorage().GetEpisode(r.Context(), episodeID)
	if err != nil {
		h.writeEpisodeError(w, err)
		return
	}

	if episode.Script != "" {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"episode_id": episode.ID,
			"script":     episode.Script,
			"partial":    false,
		})
		return
	}

	insights, err := h.storage.InsightStorage().GetInsightsByEpisode(r.Context(), episodeID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"episode_id": episode.ID,
		"script":     "",
		"partial":    true,
		"insights":   insights,
	})
}

// CancelHandler requests cancellation; a no-op on terminal episodes.
// POST /api/episodes/{id}/cancel
func (h *EpisodeHandler) CancelHandler(w http.ResponseWriter, r *http.Request, episodeID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.orch.Cancel(r.Context(), episodeID); err != nil {
		h.writeEpisodeError(w, err)
		return
	}
	WriteSuccess(w, "cancellation requested")
}

// RegenerateHandler starts a fresh episode from an existing one.
// POST /api/episodes/{id}/regenerate
func (h *EpisodeHandler) RegenerateHandler(w http.ResponseWriter, r *http.Request, episodeID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	episode, err := h.orch.Regenerate(r.Context(), episodeID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEpisodeNotFound):
			WriteError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, models.ErrGenerationInProgress):
			WriteError(w, http.StatusConflict, err.Error())
		default:
			WriteError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	WriteJSON(w, http.StatusAccepted, episodeStatusResponse{
		EpisodeID:     episode.ID,
		Status:        string(episode.Status),
		Stage:         string(episode.Stage),
		EpisodeNumber: episode.EpisodeNumber,
	})
}

type sessionRequest struct {
	UserID            string  `json:"user_id" validate:"required"`
	ListenedSeconds   float64 `json:"listened_duration_seconds" validate:"gte=0"`
	CompletionPercent float64 `json:"completion_percentage" validate:"gte=0,lte=100"`
	Completed         bool    `json:"completed"`
}

// SessionHandler ingests one listening session and bumps the episode's
// listen count.
// POST /api/episodes/{id}/sessions
func (h *EpisodeHandler) SessionHandler(w http.ResponseWriter, r *http.Request, episodeID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req sessionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid session: "+err.Error())
		return
	}

	episode, err := h.storage.EpisodeStorage().GetEpisode(r.Context(), episodeID)
	if err != nil {
		h.writeEpisodeError(w, err)
		return
	}

	session := &models.ListeningSession{
		ID:                common.NewSessionID(),
		EpisodeID:         episode.ID,
		UserID:            req.UserID,
		StartedAt:         time.Now(),
		ListenedSeconds:   req.ListenedSeconds,
		CompletionPercent: req.CompletionPercent,
	}
	if req.Completed {
		now := time.Now()
		session.CompletedAt = &now
	}

	if err := h.storage.SessionStorage().SaveSession(r.Context(), session); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	episode.ListenCount++
	if err := h.storage.EpisodeStorage().SaveEpisode(r.Context(), episode); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{
		"session_id": session.ID,
	})
}

type ratingRequest struct {
	Rating int `json:"rating" validate:"required,gte=1,lte=5"`
}

// RatingHandler records a 1-5 rating on the episode.
// POST /api/episodes/{id}/rating
func (h *EpisodeHandler) RatingHandler(w http.ResponseWriter, r *http.Request, episodeID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ratingRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	episode, err := h.storage.EpisodeStorage().GetEpisode(r.Context(), episodeID)
	if err != nil {
		h.writeEpisodeError(w, err)
		return
	}

	episode.Rating = &req.Rating
	if err := h.storage.EpisodeStorage().SaveEpisode(r.Context(), episode); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteSuccess(w, "rating recorded")
}

func (h *EpisodeHandler) writeEpisodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrEpisodeNotFound) {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}
