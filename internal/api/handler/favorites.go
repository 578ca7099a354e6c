package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
	"github.com/cleanairroute/cleanairroute/internal/search"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

// FavoritesHandler handles saved route endpoints.
type FavoritesHandler struct {
	sessions *session.Manager
}

// NewFavoritesHandler creates a new FavoritesHandler.
func NewFavoritesHandler(sessions *session.Manager) *FavoritesHandler {
	return &FavoritesHandler{sessions: sessions}
}

// List handles GET /v1/session/favorites.
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	favorites, err := sess.Favorites(r.Context())
	if err != nil {
		response.InternalError(w, r, "loading favorites failed")
		return
	}
	if favorites == nil {
		favorites = []search.Favorite{}
	}
	response.JSON(w, r, http.StatusOK, models.FavoriteList{Items: favorites})
}

// Create handles POST /v1/session/favorites.
func (h *FavoritesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input models.FavoriteCreateRequest
	if !decodeValid(w, r, &input) {
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	favorite, err := sess.SaveFavorite(r.Context(), input.Label, input.Start.Geo(), input.End.Geo())
	if err != nil {
		if errors.Is(err, search.ErrFavoriteLimitReached) {
			response.Conflict(w, r, "favorite limit reached")
			return
		}
		response.InternalError(w, r, "saving favorite failed")
		return
	}

	location := fmt.Sprintf("/v1/session/favorites/%s", favorite.ID)
	response.Created(w, r, location, favorite)
}

// Delete handles DELETE /v1/session/favorites/{favoriteId}.
func (h *FavoritesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "favoriteId"))
	if err != nil {
		response.BadRequest(w, r, "favoriteId must be a UUID", nil)
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sess.DeleteFavorite(r.Context(), id); err != nil {
		if errors.Is(err, search.ErrFavoriteNotFound) {
			response.NotFound(w, r, "favorite not found")
			return
		}
		response.InternalError(w, r, "deleting favorite failed")
		return
	}

	response.NoContent(w, r)
}
