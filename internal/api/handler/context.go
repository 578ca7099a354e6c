package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/cleanairroute/cleanairroute/internal/api/middleware"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

// sessionFor resolves the caller's session from the authenticated device.
// Writes a 401 problem and returns false when no device is in the context.
func sessionFor(w http.ResponseWriter, r *http.Request, m *session.Manager) (*session.Session, bool) {
	deviceID := middleware.GetDeviceID(r.Context())
	if deviceID == uuid.Nil {
		response.Unauthorized(w, r, "authentication required")
		return nil, false
	}
	return m.GetOrCreate(r.Context(), deviceID), true
}
