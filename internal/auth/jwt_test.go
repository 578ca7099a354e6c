package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanairroute/cleanairroute/internal/auth"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenService_MintAndVerify(t *testing.T) {
	svc := auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-secret-key-for-testing-only",
	})

	deviceID := uuid.New()
	token, minted, err := svc.Mint(deviceID)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.NotEmpty(t, minted.ID)
	assert.True(t, minted.ExpiresAt.After(time.Now()))

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, deviceID.String(), claims.Subject)
	assert.Equal(t, "cleanairroute", claims.Issuer)

	gotDevice, err := claims.DeviceID()
	require.NoError(t, err)
	assert.Equal(t, deviceID, gotDevice)

	gotSession, err := claims.SessionID()
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, gotSession)
}

func TestTokenService_ExpiredToken(t *testing.T) {
	clock := &stepClock{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
	svc := auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Clock:      clock.Now,
	})

	token, _, err := svc.Mint(uuid.New())
	require.NoError(t, err)

	clock.Advance(auth.SessionTokenTTL + time.Hour)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenService_InvalidToken(t *testing.T) {
	svc := auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-secret-key-for-testing-only",
	})

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestTokenService_WrongSigningKey(t *testing.T) {
	svc1 := auth.NewTokenService(auth.TokenConfig{SigningKey: "key-one"})
	token, _, err := svc1.Mint(uuid.New())
	require.NoError(t, err)

	svc2 := auth.NewTokenService(auth.TokenConfig{SigningKey: "key-two"})
	_, err = svc2.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenService_WrongIssuer(t *testing.T) {
	svc1 := auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-key",
		Issuer:     "issuer-one",
	})
	token, _, err := svc1.Mint(uuid.New())
	require.NoError(t, err)

	svc2 := auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-key",
		Issuer:     "issuer-two",
	})
	_, err = svc2.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenService_WrongAudience(t *testing.T) {
	svc1 := auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-key",
		Audience:   "audience-one",
	})
	token, _, err := svc1.Mint(uuid.New())
	require.NoError(t, err)

	svc2 := auth.NewTokenService(auth.TokenConfig{
		SigningKey: "test-key",
		Audience:   "audience-two",
	})
	_, err = svc2.Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}
