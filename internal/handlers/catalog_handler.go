package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/catalog"
	"github.com/audiofin/fincast/internal/models"
)

// CatalogHandler serves the persona catalog and template registry
type CatalogHandler struct {
	catalog *catalog.Catalog
	logger  arbor.ILogger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(cat *catalog.Catalog, logger arbor.ILogger) *CatalogHandler {
	return &CatalogHandler{
		catalog: cat,
		logger:  logger,
	}
}

// ListPersonasHandler handles GET /api/personas
func (h *CatalogHandler) ListPersonasHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"personas": h.catalog.Personas(),
	})
}

// ListTemplatesHandler handles GET /api/templates
func (h *CatalogHandler) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	templates := make([]*models.EpisodeTemplate, 0)
	for _, episodeType := range h.catalog.EpisodeTypes() {
		tmpl, err := h.catalog.GetTemplate(episodeType)
		if err != nil {
			continue
		}
		templates = append(templates, tmpl)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
	})
}
