package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// WarmJob fetches air quality data for every cell of the configured area so
// the shared caches are already hot when the commute peak hits.
type WarmJob struct {
	config WarmConfig
	logger zerolog.Logger

	air *airquality.Service

	metrics *WarmMetrics
}

// WarmMetrics tracks warm job statistics.
type WarmMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns    int64
	CellsWarmed  int64
	CellsFailed  int64
	HeatmapWarms int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WarmJobConfig holds configuration for creating a WarmJob.
type WarmJobConfig struct {
	Config WarmConfig
	Logger zerolog.Logger

	// AirQuality is optional; a nil service skips every fetch.
	AirQuality *airquality.Service
}

// NewWarmJob creates a new cache warm job.
func NewWarmJob(cfg WarmJobConfig) *WarmJob {
	config := cfg.Config
	if config.Area.Bounds.IsZero() {
		config = DefaultWarmConfig()
	}
	if config.Resolution <= 0 {
		config.Resolution = geo.H3ResolutionWarm
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	if config.CellTimeout <= 0 {
		config.CellTimeout = 10 * time.Second
	}

	return &WarmJob{
		config:  config,
		logger:  cfg.Logger,
		air:     cfg.AirQuality,
		metrics: &WarmMetrics{},
	}
}

// WarmResult contains the result of one warm run.
type WarmResult struct {
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	TotalCells    int
	Warmed        int
	Failed        int
	HeatmapWarmed bool
	Errors        []WarmError
}

// WarmError records one failed fetch during a warm run.
type WarmError struct {
	Stage string
	Point geo.Point
	Error string
}

// Run executes one warm pass over the configured area.
func (j *WarmJob) Run(ctx context.Context) *WarmResult {
	startTime := time.Now()
	points := j.config.CellPoints()
	result := &WarmResult{
		StartTime:  startTime,
		TotalCells: len(points),
	}

	j.logger.Info().
		Str("area", j.config.Area.Name).
		Int("total_cells", result.TotalCells).
		Int("concurrency", j.config.Concurrency).
		Msg("starting cache warm job")

	// The overlay covers the whole area, so warm it once before fanning
	// out over the cells.
	if j.config.WarmHeatmap && j.air != nil {
		if err := j.warmHeatmap(ctx); err != nil {
			result.Errors = append(result.Errors, WarmError{
				Stage: "heatmap",
				Point: j.config.Area.Bounds.Center(),
				Error: err.Error(),
			})
		} else {
			result.HeatmapWarmed = true
		}
	}

	if j.config.WarmCurrent && j.air != nil {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(j.config.Concurrency)

		for _, p := range points {
			g.Go(func() error {
				err := j.warmCell(gctx, p)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, WarmError{
						Stage: "current",
						Point: p,
						Error: err.Error(),
					})
					return nil
				}
				result.Warmed++
				return nil
			})
		}

		// Workers report through result, never through the group error, so
		// one bad cell cannot cancel the rest of the run.
		_ = g.Wait()
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("warmed", result.Warmed).
		Int("failed", result.Failed).
		Bool("heatmap_warmed", result.HeatmapWarmed).
		Msg("cache warm job completed")

	return result
}

func (j *WarmJob) warmCell(ctx context.Context, p geo.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cellCtx, cancel := context.WithTimeout(ctx, j.config.CellTimeout)
	defer cancel()

	// Going through the service rather than the provider populates the
	// same cache the API serves from.
	_, err := j.air.Current(cellCtx, p)
	return err
}

func (j *WarmJob) warmHeatmap(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tileCtx, cancel := context.WithTimeout(ctx, j.config.CellTimeout)
	defer cancel()

	_, err := j.air.HeatmapByBounds(tileCtx, j.config.Area.Bounds, airquality.PollutantPM25)
	return err
}

func (j *WarmJob) updateMetrics(result *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.CellsWarmed += int64(result.Warmed)
	j.metrics.CellsFailed += int64(result.Failed)
	if result.HeatmapWarmed {
		j.metrics.HeatmapWarms++
	}
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WarmJob) GetMetrics() WarmMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WarmMetrics{
		TotalRuns:       j.metrics.TotalRuns,
		CellsWarmed:     j.metrics.CellsWarmed,
		CellsFailed:     j.metrics.CellsFailed,
		HeatmapWarms:    j.metrics.HeatmapWarms,
		LastRunAt:       j.metrics.LastRunAt,
		LastRunDuration: j.metrics.LastRunDuration,
		TotalDuration:   j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for the worker's
// health endpoint.
func (j *WarmJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":        m.TotalRuns,
		"cells_warmed":      m.CellsWarmed,
		"cells_failed":      m.CellsFailed,
		"heatmap_warms":     m.HeatmapWarms,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
