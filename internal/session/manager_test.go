package session_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanairroute/cleanairroute/internal/session"
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

func newTestManager(t *testing.T, env *testEnv, clock *stepClock) *session.Manager {
	t.Helper()
	m := session.NewManager(session.ManagerConfig{
		Prefs:      env.prefsSvc,
		SearchRepo: env.searchRepo,
		AirQuality: env.airSvc,
		Routing:    env.routeSvc,
		Geocoder:   env.geoSvc,
		IdleTTL:    30 * time.Minute,
		SweepEvery: 10 * time.Millisecond,
		Clock:      clock.Now,
		Logger:     zerolog.New(io.Discard),
	})
	t.Cleanup(m.Close)
	return m
}

func TestManagerGetOrCreateReusesSession(t *testing.T) {
	env := newTestEnv(t)
	clock := &stepClock{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
	m := newTestManager(t, env, clock)

	deviceA := uuid.New()
	deviceB := uuid.New()

	s1 := m.GetOrCreate(context.Background(), deviceA)
	require.NotNil(t, s1)
	assert.Same(t, s1, m.GetOrCreate(context.Background(), deviceA))
	assert.Equal(t, 1, m.Len())

	s2 := m.GetOrCreate(context.Background(), deviceB)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, m.Len())
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	env := newTestEnv(t)
	clock := &stepClock{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
	m := newTestManager(t, env, clock)

	deviceID := uuid.New()
	s1 := m.GetOrCreate(context.Background(), deviceID)
	require.Equal(t, 1, m.Len())

	clock.Advance(31 * time.Minute)
	require.Eventually(t, func() bool { return m.Len() == 0 }, waitFor, tick,
		"a session idle past the TTL must be evicted")

	s2 := m.GetOrCreate(context.Background(), deviceID)
	assert.NotSame(t, s1, s2, "an evicted device gets a fresh session")
}

func TestManagerKeepsActiveSessions(t *testing.T) {
	env := newTestEnv(t)
	clock := &stepClock{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
	m := newTestManager(t, env, clock)

	s := m.GetOrCreate(context.Background(), uuid.New())

	clock.Advance(20 * time.Minute)
	s.SetZoom(14)
	clock.Advance(20 * time.Minute)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, m.Len(), "activity must reset the idle timer")
}

func TestManagerCloseClosesSessions(t *testing.T) {
	env := newTestEnv(t)
	clock := &stepClock{now: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)}
	m := newTestManager(t, env, clock)

	m.GetOrCreate(context.Background(), uuid.New())
	m.GetOrCreate(context.Background(), uuid.New())
	require.Equal(t, 2, m.Len())

	m.Close()
	assert.Equal(t, 0, m.Len())
}
