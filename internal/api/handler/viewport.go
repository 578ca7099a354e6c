package handler

import (
	"net/http"

	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

// ViewportHandler handles camera, toggle, and map interaction endpoints.
// Every mutation returns the fresh state snapshot so clients render without
// a follow-up read.
type ViewportHandler struct {
	sessions *session.Manager
}

// NewViewportHandler creates a new ViewportHandler.
func NewViewportHandler(sessions *session.Manager) *ViewportHandler {
	return &ViewportHandler{sessions: sessions}
}

// Camera handles POST /v1/session/viewport/camera - move center, zoom, or both.
func (h *ViewportHandler) Camera(w http.ResponseWriter, r *http.Request) {
	var input models.CameraRequest
	if !decodeValid(w, r, &input) {
		return
	}
	if input.Center == nil && input.Zoom == nil {
		response.BadRequest(w, r, "at least one of center and zoom is required", []models.FieldError{
			{Field: "center", Message: "required if zoom not provided"},
			{Field: "zoom", Message: "required if center not provided"},
		})
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var err error
	switch {
	case input.Center != nil && input.Zoom != nil:
		err = sess.SetCamera(input.Center.Geo(), *input.Zoom)
	case input.Center != nil:
		err = sess.SetCenter(input.Center.Geo())
	default:
		sess.SetZoom(*input.Zoom)
	}
	if err != nil {
		response.BadRequest(w, r, "invalid camera center", nil)
		return
	}

	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}

// Fit handles POST /v1/session/viewport/fit - frame a region.
func (h *ViewportHandler) Fit(w http.ResponseWriter, r *http.Request) {
	var input models.FitBoundsRequest
	if !decodeValid(w, r, &input) {
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	sess.FitBounds(geo.NewBounds(input.SouthWest.Geo(), input.NorthEast.Geo()))
	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}

// Toggles handles POST /v1/session/viewport/toggles - flip layer toggles.
func (h *ViewportHandler) Toggles(w http.ResponseWriter, r *http.Request) {
	var input models.TogglesRequest
	if !decodeValid(w, r, &input) {
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	sess.SetToggles(input.ShowHeatmap, input.ShowFavorites)
	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}

// MapClick handles POST /v1/session/map/click - a tap on the map canvas.
func (h *ViewportHandler) MapClick(w http.ResponseWriter, r *http.Request) {
	var input models.MapClickRequest
	if !decodeValid(w, r, &input) {
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	sess.MapClick(input.Point.Geo())
	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}
