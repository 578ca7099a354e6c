package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
	"github.com/cleanairroute/cleanairroute/internal/auth"
	"github.com/cleanairroute/cleanairroute/internal/device"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

// SessionHandler issues session tokens and serves the state snapshot.
type SessionHandler struct {
	devices  *device.Service
	tokens   *auth.TokenService
	sessions *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(devices *device.Service, tokens *auth.TokenService, sessions *session.Manager) *SessionHandler {
	return &SessionHandler{
		devices:  devices,
		tokens:   tokens,
		sessions: sessions,
	}
}

// Issue handles POST /v1/sessions - mint a session token for a device.
// A known device id refreshes its last-seen time; an unknown or absent one
// registers the device, which requires the platform field.
func (h *SessionHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var input models.SessionIssueRequest
	if !decodeValid(w, r, &input) {
		return
	}

	var dev *device.Device
	if input.DeviceID != nil && *input.DeviceID != uuid.Nil {
		d, err := h.devices.Get(r.Context(), *input.DeviceID)
		switch {
		case err == nil:
			if err := h.devices.Touch(r.Context(), d.ID); err != nil {
				response.InternalError(w, r, "updating device failed")
				return
			}
			dev = d
		case errors.Is(err, device.ErrDeviceNotFound):
			// Fall through to registration under the requested id.
		default:
			response.InternalError(w, r, "loading device failed")
			return
		}
	}

	if dev == nil {
		if input.Platform == "" {
			response.BadRequest(w, r, "platform is required to register a device", []models.FieldError{
				{Field: "platform", Message: "required for new devices", Code: "required"},
			})
			return
		}

		id := uuid.Nil
		if input.DeviceID != nil {
			id = *input.DeviceID
		}
		d, _, err := h.devices.Register(r.Context(), device.RegisterInput{
			ID:         id,
			Platform:   input.Platform,
			AppVersion: input.AppVersion,
		})
		if err != nil {
			if errors.Is(err, device.ErrUnknownPlatform) {
				response.BadRequest(w, r, "unknown platform", []models.FieldError{
					{Field: "platform", Message: "must be ios, android, or web", Code: "oneof"},
				})
				return
			}
			response.InternalError(w, r, "registering device failed")
			return
		}
		dev = d
	}

	token, claims, err := h.tokens.Mint(dev.ID)
	if err != nil {
		response.InternalError(w, r, "minting session token failed")
		return
	}

	resp := models.SessionIssueResponse{
		Token:     token,
		SessionID: claims.ID,
		DeviceID:  dev.ID.String(),
		ExpiresAt: models.Timestamp(claims.ExpiresAt.Time),
	}
	response.Created(w, r, "/v1/session/state", resp)
}

// State handles GET /v1/session/state - the full selector snapshot.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.SessionStateFromDomain(sess.State()))
}
