package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/services/analytics"
)

// AnalyticsHandler exposes read-side listening statistics
type AnalyticsHandler struct {
	analytics *analytics.Aggregator
	logger    arbor.ILogger
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(agg *analytics.Aggregator, logger arbor.ILogger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: agg,
		logger:    logger,
	}
}

// GetHandler returns a user's aggregated analytics. Missing history
// yields zeroed structures, never an error.
// GET /api/analytics/{userId}
func (h *AnalyticsHandler) GetHandler(w http.ResponseWriter, r *http.Request, userID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	if userID == "" {
		WriteError(w, http.StatusBadRequest, "user id is required")
		return
	}

	WriteJSON(w, http.StatusOK, h.analytics.GetAnalytics(r.Context(), userID))
}
