package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
)

// StatusHandler serves liveness and version endpoints
type StatusHandler struct {
	storage interfaces.StorageManager
	llm     interfaces.LLMService
	logger  arbor.ILogger
	started time.Time
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(storage interfaces.StorageManager, llm interfaces.LLMService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		storage: storage,
		llm:     llm,
		logger:  logger,
		started: time.Now(),
	}
}

// HealthHandler handles GET /api/health. Storage must answer; the LLM
// check is reported but does not fail the endpoint.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	checks := map[string]string{
		"storage": "ok",
		"llm":     "ok",
	}
	status := http.StatusOK

	if _, err := h.storage.EpisodeStorage().ListEpisodes(r.Context(), &interfaces.EpisodeListOptions{Limit: 1}); err != nil {
		h.logger.Warn().Err(err).Msg("Health check: storage unavailable")
		checks["storage"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	if err := h.llm.HealthCheck(r.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Health check: LLM provider unavailable")
		checks["llm"] = err.Error()
	}

	healthy := "healthy"
	if status != http.StatusOK {
		healthy = "unhealthy"
	}

	WriteJSON(w, status, map[string]interface{}{
		"status":         healthy,
		"checks":         checks,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
	})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}
