package handler

import (
	"net/http"

	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
)

// MetadataHandler handles static reference data endpoints.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// Pollutants handles GET /v1/metadata/pollutants - the pollutant catalogue
// with the grade ladder and its color scale.
func (h *MetadataHandler) Pollutants(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, models.PollutantMetadataFromDomain())
}
