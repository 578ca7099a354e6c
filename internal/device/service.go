package device

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegisterInput is the input for registering a device. A Nil ID asks the
// service to mint one; a known ID re-registers the same device after a
// client reinstall or storage wipe.
type RegisterInput struct {
	ID         uuid.UUID
	Platform   string
	AppVersion string
}

// ServiceConfig holds configuration for the device service.
type ServiceConfig struct {
	Repo Repository

	// Clock supplies timestamps. Defaults to time.Now.
	Clock func() time.Time

	Logger zerolog.Logger
}

// Service provides device registration operations.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

// NewService creates a new device service.
func NewService(cfg ServiceConfig) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   cfg.Repo,
		now:    now,
		logger: cfg.Logger.With().Str("component", "devices").Logger(),
	}
}

// Register registers a device, or refreshes an existing registration.
// Returns the stored device and whether it was newly created.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Device, bool, error) {
	platform, ok := ParsePlatform(in.Platform)
	if !ok {
		return nil, false, ErrUnknownPlatform
	}

	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	now := s.now()
	d := &Device{
		ID:         id,
		Platform:   platform,
		AppVersion: in.AppVersion,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	created, err := s.repo.Upsert(ctx, d)
	if err != nil {
		return nil, false, err
	}

	s.logger.Info().
		Str("device_id", d.ID.String()).
		Str("platform", string(d.Platform)).
		Bool("created", created).
		Msg("device registered")
	return d, created, nil
}

// Touch bumps the device's last-seen time.
func (s *Service) Touch(ctx context.Context, id uuid.UUID) error {
	return s.repo.Touch(ctx, id, s.now())
}

// Get retrieves a device by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Device, error) {
	return s.repo.Get(ctx, id)
}
