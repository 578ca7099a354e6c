package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/api/response"
	"github.com/cleanairroute/cleanairroute/internal/notify"
	"github.com/cleanairroute/cleanairroute/internal/session"
)

// NotificationsHandler handles the session notification queue.
type NotificationsHandler struct {
	sessions *session.Manager
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(sessions *session.Manager) *NotificationsHandler {
	return &NotificationsHandler{sessions: sessions}
}

// List handles GET /v1/session/notifications - pending entries, newest first.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	items := sess.Notifications()
	if items == nil {
		items = []notify.Notification{}
	}
	response.JSON(w, r, http.StatusOK, models.NotificationList{Items: items})
}

// Dismiss handles DELETE /v1/session/notifications/{notificationId}.
func (h *NotificationsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "notificationId"))
	if err != nil {
		response.BadRequest(w, r, "notificationId must be a UUID", nil)
		return
	}

	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	if err := sess.DismissNotification(id); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			response.NotFound(w, r, "notification not found")
			return
		}
		response.InternalError(w, r, "dismissing notification failed")
		return
	}

	response.NoContent(w, r)
}

// DismissAll handles DELETE /v1/session/notifications - clear the queue.
func (h *NotificationsHandler) DismissAll(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	sess.DismissAllNotifications()
	response.NoContent(w, r)
}
