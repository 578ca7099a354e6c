package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// PubSubHandler handles Pub/Sub messages for the worker. In production the
// messages come from Cloud Scheduler ahead of the morning and evening peaks.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	warmJob          *WarmJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	WarmJob          *WarmJob
	Logger           zerolog.Logger
}

// WarmMessage is a cache warm job message.
type WarmMessage struct {
	Kind string `json:"kind"`
	Area string `json:"area,omitempty"`
}

// Message kinds the worker understands.
const (
	KindWarm        = "warm"
	KindHealthCheck = "health_check"
)

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// Configure receive settings. A warm run over the metro takes minutes,
	// so keep the ack deadline extension generous.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		warmJob:          cfg.WarmJob,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	// Parse message.
	var warmMsg WarmMessage
	if err := json.Unmarshal(msg.Data, &warmMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		msg.Nack()
		return
	}

	// Messages addressed to another area are not ours to retry.
	if warmMsg.Area != "" && warmMsg.Area != h.warmJob.config.Area.Name {
		logger.Warn().Str("area", warmMsg.Area).Msg("message for unknown area")
		msg.Ack()
		return
	}

	// Handle based on message kind.
	var err error
	switch warmMsg.Kind {
	case KindWarm:
		err = h.handleWarm(ctx)
	case KindHealthCheck:
		err = h.handleHealthCheck(ctx)
	default:
		logger.Warn().Str("kind", warmMsg.Kind).Msg("unknown message kind")
		msg.Ack() // Ack unknown messages to prevent redelivery
		return
	}

	if err != nil {
		logger.Error().Err(err).Msg("job failed")
		msg.Nack()
		return
	}

	duration := time.Since(startTime)
	logger.Info().
		Str("kind", warmMsg.Kind).
		Dur("duration", duration).
		Msg("job completed successfully")

	msg.Ack()
}

func (h *PubSubHandler) handleWarm(ctx context.Context) error {
	h.logger.Info().
		Str("area", h.warmJob.config.Area.Name).
		Msg("starting cache warm")

	result := h.warmJob.Run(ctx)

	// Log summary.
	h.logger.Info().
		Dur("duration", result.Duration).
		Int("warmed", result.Warmed).
		Int("failed", result.Failed).
		Int("total_cells", result.TotalCells).
		Msg("cache warm completed")

	// Consider it successful if more than half the cells warmed.
	if result.Failed > result.Warmed {
		return fmt.Errorf("too many warm failures: %d/%d", result.Failed, result.TotalCells)
	}

	return nil
}

func (h *PubSubHandler) handleHealthCheck(ctx context.Context) error {
	h.logger.Debug().Msg("running health check")

	// Probe a single cell at the area center to verify gateway
	// connectivity. Degenerate bounds resolve to one cell.
	center := h.warmJob.config.Area.Bounds.Center()
	probeConfig := WarmConfig{
		Area: WarmArea{
			Name:   "health-check",
			Bounds: geo.Bounds{SouthWest: center, NorthEast: center},
		},
		Resolution:  h.warmJob.config.Resolution,
		Concurrency: 1,
		CellTimeout: 10 * time.Second,
		WarmCurrent: true,
		WarmHeatmap: false, // Skip the overlay for health checks
	}

	probeJob := NewWarmJob(WarmJobConfig{
		Config:     probeConfig,
		Logger:     h.logger,
		AirQuality: h.warmJob.air,
	})

	result := probeJob.Run(ctx)

	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %d errors", result.Failed)
	}

	h.logger.Debug().Msg("health check passed")
	return nil
}
