// Package device provides device registration behind session issuance.
// A device is the unit of identity: preferences, favorites, and history
// are all keyed by device ID, and session tokens carry it as subject.
package device

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository errors.
var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrUnknownPlatform = errors.New("unknown device platform")
)

// Platform identifies the client platform a device runs on.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// ParsePlatform returns the Platform for s, case-insensitive; ok is false
// for anything outside the known set.
func ParsePlatform(s string) (Platform, bool) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformIOS:
		return PlatformIOS, true
	case PlatformAndroid:
		return PlatformAndroid, true
	case PlatformWeb:
		return PlatformWeb, true
	}
	return "", false
}

// Device is a registered client device.
type Device struct {
	ID         uuid.UUID `json:"id"`
	Platform   Platform  `json:"platform"`
	AppVersion string    `json:"app_version"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
