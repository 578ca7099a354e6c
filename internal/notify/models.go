package notify

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Dismiss when no queued notification carries
// the given ID.
var ErrNotFound = errors.New("notification not found")

// Level classifies a notification for rendering emphasis.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one entry in a session's notification queue.
type Notification struct {
	ID      uuid.UUID `json:"id"`
	Level   Level     `json:"level"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// NotificationPushed is emitted after Push stores a notification.
type NotificationPushed struct {
	Notification Notification
}

// Stats reports queue occupancy and lifetime counters.
type Stats struct {
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
	Pushed   uint64 `json:"pushed"`
	Dropped  uint64 `json:"dropped"`
}
