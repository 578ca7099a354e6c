package prefs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/cache"
)

// loadTimeout bounds a single repository read.
const loadTimeout = 5 * time.Second

// ServiceConfig holds configuration for the preference service.
type ServiceConfig struct {
	// Repo is the backing store.
	Repo Repository

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long a loaded snapshot is served without re-reading
	// the repository (default: 60 seconds).
	CacheTTL time.Duration

	// MaxEntries caps the read cache (default: 1024).
	MaxEntries int

	// Clock overrides time for tests.
	Clock cache.Clock
}

// Service reads and writes device preference snapshots through a short-lived
// read cache, so session hydration does not hit the repository on every
// request.
type Service struct {
	repo      Repository
	logger    zerolog.Logger
	clock     cache.Clock
	snapshots *cache.Store[Snapshot]
}

// NewService creates a new preference service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 60 * time.Second
	}
	maxEntries := cfg.MaxEntries
	if maxEntries == 0 {
		maxEntries = 1024
	}
	clock := cfg.Clock
	if clock == nil {
		clock = cache.SystemClock
	}

	return &Service{
		repo:   cfg.Repo,
		logger: cfg.Logger,
		clock:  clock,
		snapshots: cache.New[Snapshot](cache.Config{
			Name:         "prefs",
			TTL:          cacheTTL,
			MaxEntries:   maxEntries,
			FetchTimeout: loadTimeout,
			Clock:        cfg.Clock,
			Logger:       cfg.Logger,
		}),
	}
}

// Snapshot returns the stored preferences for a device, or the Seoul defaults
// when the device has none or the repository is unreachable. It never fails;
// hydration always has something to start from.
func (s *Service) Snapshot(ctx context.Context, deviceID uuid.UUID) Snapshot {
	snap, err := s.snapshots.Get(ctx, deviceID.String(), func(ctx context.Context) (Snapshot, error) {
		loaded, err := s.repo.Load(ctx, deviceID)
		if err == nil {
			return loaded, nil
		}
		if errors.Is(err, ErrNotFound) {
			return DefaultSnapshot(deviceID), nil
		}
		return Snapshot{}, err
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("device_id", deviceID.String()).Msg("loading preferences failed, using defaults")
		return DefaultSnapshot(deviceID)
	}
	return snap
}

// Save persists the snapshot and drops the cached copy so the next read sees
// the new state. UpdatedAt is stamped here.
func (s *Service) Save(ctx context.Context, snap Snapshot) error {
	snap.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, snap); err != nil {
		return err
	}
	s.snapshots.Invalidate(snap.DeviceID.String())
	return nil
}

// InvalidateCache clears all cached snapshots.
func (s *Service) InvalidateCache() {
	s.snapshots.InvalidateAll()
}

// CacheStats reports cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.snapshots.Stats()
}

// Close releases cache resources.
func (s *Service) Close() {
	s.snapshots.Close()
}
