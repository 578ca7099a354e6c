package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cleanairroute/cleanairroute/internal/api/models"
	"github.com/cleanairroute/cleanairroute/internal/auth"
)

// deviceIDKey is the context key for the authenticated device ID.
type deviceIDKey struct{}

// sessionIDKey is the context key for the session ID carried by the token.
type sessionIDKey struct{}

// Auth creates authentication middleware that validates bearer session
// tokens and injects the device and session identity into the context.
// Verification is stateless; no store is consulted per request.
func Auth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract bearer token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, r, "missing authorization header")
				return
			}

			// Check for Bearer prefix (case-insensitive)
			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeUnauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeUnauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := tokens.Verify(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeUnauthorized(w, r, "session token has expired")
				default:
					writeUnauthorized(w, r, "invalid session token")
				}
				return
			}

			deviceID, err := claims.DeviceID()
			if err != nil {
				writeUnauthorized(w, r, "invalid session token")
				return
			}
			sessionID, err := claims.SessionID()
			if err != nil {
				writeUnauthorized(w, r, "invalid session token")
				return
			}

			ctx := context.WithValue(r.Context(), deviceIDKey{}, deviceID)
			ctx = context.WithValue(ctx, sessionIDKey{}, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized writes a 401 Unauthorized response.
// This is implemented directly here to avoid import cycle with response package.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	traceID := GetRequestID(r.Context())
	problem := models.NewUnauthorized(traceID, detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetDeviceID retrieves the authenticated device ID from the context.
// Returns uuid.Nil if not authenticated.
func GetDeviceID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(deviceIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// GetSessionID retrieves the token's session ID from the context.
// Returns uuid.Nil if not authenticated.
func GetSessionID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(sessionIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
