package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geocode"
	"github.com/cleanairroute/cleanairroute/internal/prefs"
	"github.com/cleanairroute/cleanairroute/internal/routing"
	"github.com/cleanairroute/cleanairroute/internal/search"
)

const (
	defaultIdleTTL    = 30 * time.Minute
	defaultSweepEvery = time.Minute
)

// ManagerConfig holds configuration for the session manager.
type ManagerConfig struct {
	// Prefs, SearchRepo, AirQuality, Routing, and Geocoder are handed to
	// every session the manager creates.
	Prefs      *prefs.Service
	SearchRepo search.Repository
	AirQuality *airquality.Service
	Routing    *routing.Service
	Geocoder   *geocode.Service

	// Aspect is the viewport aspect ratio for new sessions (default: 1).
	Aspect float64

	// IdleTTL evicts sessions not used for this long (default: 30 minutes).
	IdleTTL time.Duration

	// SweepEvery is the eviction check interval (default: 1 minute).
	SweepEvery time.Duration

	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time

	Logger zerolog.Logger
}

// Manager keeps one live session per device and evicts idle ones.
type Manager struct {
	cfg     ManagerConfig
	idleTTL time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a session manager and starts its eviction loop.
func NewManager(cfg ManagerConfig) *Manager {
	idleTTL := cfg.IdleTTL
	if idleTTL == 0 {
		idleTTL = defaultIdleTTL
	}
	sweepEvery := cfg.SweepEvery
	if sweepEvery == 0 {
		sweepEvery = defaultSweepEvery
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		cfg:      cfg,
		idleTTL:  idleTTL,
		now:      now,
		logger:   cfg.Logger.With().Str("component", "sessions").Logger(),
		sessions: make(map[uuid.UUID]*Session),
		stop:     make(chan struct{}),
	}

	go m.sweepLoop(sweepEvery)

	return m
}

// GetOrCreate returns the device's live session, building and hydrating one
// when none exists. Safe for concurrent use.
func (m *Manager) GetOrCreate(ctx context.Context, deviceID uuid.UUID) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[deviceID]; ok {
		m.mu.Unlock()
		return s
	}
	m.mu.Unlock()

	// Hydration reads the preference and search repositories, so it runs
	// outside the manager lock. A concurrent create for the same device is
	// resolved below; the loser is closed.
	created := New(ctx, Config{
		DeviceID:   deviceID,
		Prefs:      m.cfg.Prefs,
		SearchRepo: m.cfg.SearchRepo,
		AirQuality: m.cfg.AirQuality,
		Routing:    m.cfg.Routing,
		Geocoder:   m.cfg.Geocoder,
		Aspect:     m.cfg.Aspect,
		Clock:      m.cfg.Clock,
		Logger:     m.cfg.Logger,
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[deviceID]; ok {
		created.Close()
		return existing
	}
	m.sessions[deviceID] = created
	m.logger.Info().
		Str("device_id", deviceID.String()).
		Int("active", len(m.sessions)).
		Msg("session created")
	return created
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops the eviction loop and closes every session.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) evictIdle() {
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	var evicted []*Session
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			delete(m.sessions, id)
			evicted = append(evicted, s)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if len(evicted) == 0 {
		return
	}
	for _, s := range evicted {
		s.Close()
	}
	m.logger.Info().
		Int("evicted", len(evicted)).
		Int("active", remaining).
		Msg("idle sessions evicted")
}
