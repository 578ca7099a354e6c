package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/rules"
	"github.com/cleanairroute/cleanairroute/internal/search"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

// SearchHandler handles search endpoint, execution, and result selection.
type SearchHandler struct {
	sessions *session.Manager
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(sessions *session.Manager) *SearchHandler {
	return &SearchHandler{sessions: sessions}
}

// Start handles POST /v1/session/search/start - set the start endpoint.
func (h *SearchHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.setEndpoint(w, r, rules.FieldStart)
}

// End handles POST /v1/session/search/end - set the end endpoint.
func (h *SearchHandler) End(w http.ResponseWriter, r *http.Request) {
	h.setEndpoint(w, r, rules.FieldEnd)
}

// setEndpoint applies one endpoint from either a resolved location or
// committed address text.
func (h *SearchHandler) setEndpoint(w http.ResponseWriter, r *http.Request, field rules.Field) {
	var input models.EndpointRequest
	if !decodeValid(w, r, &input) {
		return
	}
	if (input.Location == nil) == (input.Address == "") {
		response.BadRequest(w, r, "exactly one of location and address is required", []models.FieldError{
			{Field: "location", Message: "required if address not provided"},
			{Field: "address", Message: "required if location not provided"},
		})
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	if input.Location != nil {
		loc := input.Location.Geo()
		var err error
		if field == rules.FieldStart {
			err = sess.SetStart(loc)
		} else {
			err = sess.SetEnd(loc)
		}
		if err != nil {
			response.BadRequest(w, r, "invalid location coordinates", nil)
			return
		}
	} else {
		sess.CommitAddress(field, input.Address)
	}

	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}

// Swap handles POST /v1/session/search/swap - exchange start and end.
func (h *SearchHandler) Swap(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	sess.Swap()
	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}

// Execute handles POST /v1/session/search/execute - start a route search.
// The search runs asynchronously; poll the state snapshot for results.
func (h *SearchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sess.ExecuteSearch(); err != nil {
		if errors.Is(err, search.ErrNotReady) {
			response.Conflict(w, r, "both endpoints must be set before searching")
			return
		}
		response.InternalError(w, r, "starting search failed")
		return
	}

	response.JSON(w, r, http.StatusAccepted, models.SessionStateFromDomain(sess.State()))
}

// Select handles POST /v1/session/routes/{routeId}/select.
func (h *SearchHandler) Select(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "routeId")
	if routeID == "" {
		response.BadRequest(w, r, "routeId is required", nil)
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sess.SelectRoute(routeID); err != nil {
		if errors.Is(err, session.ErrUnknownRoute) {
			response.NotFound(w, r, "route not in current results")
			return
		}
		response.InternalError(w, r, "selecting route failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}

// ClearSelection handles DELETE /v1/session/routes/selection.
func (h *SearchHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	sess.ClearSelection()
	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}

// History handles GET /v1/session/history - executed searches, newest first.
func (h *SearchHandler) History(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	entries, err := sess.History(r.Context())
	if err != nil {
		response.InternalError(w, r, "loading history failed")
		return
	}
	if entries == nil {
		entries = []search.HistoryEntry{}
	}
	response.JSON(w, r, http.StatusOK, models.HistoryList{Items: entries})
}

// Recents handles GET /v1/session/recents - recently used locations.
func (h *SearchHandler) Recents(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	locations, err := sess.Recents(r.Context())
	if err != nil {
		response.InternalError(w, r, "loading recent locations failed")
		return
	}
	if locations == nil {
		locations = []geo.Location{}
	}
	response.JSON(w, r, http.StatusOK, models.RecentList{Items: locations})
}
