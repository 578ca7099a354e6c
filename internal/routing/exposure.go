package routing

import (
	"errors"
	"math"
	"sort"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// Estimation errors.
var (
	ErrNoObservations = errors.New("no observations within range")
	ErrEmptyPath      = errors.New("path has no waypoints")
)

// Confidence represents the confidence level of an estimated value.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

// Observation is a measured pollutant value at a point, typically a heatmap
// cell.
type Observation struct {
	Point geo.Point
	Value float64
}

// EstimatorConfig holds configuration for the exposure estimator.
type EstimatorConfig struct {
	// SampleStepMeters is the spacing between sample points along the
	// path. Default: 200.
	SampleStepMeters float64

	// MaxDistance is the maximum distance (in meters) to consider
	// observations. Observations beyond this are ignored. Default: 2500.
	MaxDistance float64

	// MaxObservations is the maximum number of nearest observations used
	// per sample point. Default: 4.
	MaxObservations int

	// Power is the power parameter for inverse distance weighting.
	// Higher values give more weight to closer observations. Default: 2.
	Power float64

	// HighConfidenceMaxDistance is the max nearest-observation distance
	// for HIGH confidence. Default: 800.
	HighConfidenceMaxDistance float64

	// MediumConfidenceMaxDistance is the max nearest-observation distance
	// for MEDIUM confidence. Default: 1600.
	MediumConfidenceMaxDistance float64
}

// DefaultEstimatorConfig returns the default configuration.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		SampleStepMeters:            200,
		MaxDistance:                 2500,
		MaxObservations:             4,
		Power:                       2.0,
		HighConfidenceMaxDistance:   800,
		MediumConfidenceMaxDistance: 1600,
	}
}

// PathEstimate is the mean estimated value along a path.
type PathEstimate struct {
	// Value is the mean of the per-sample IDW estimates.
	Value float64

	// Confidence indicates the data quality.
	Confidence Confidence

	// SampleCount is the number of path points that could be estimated.
	SampleCount int

	// NearestDistance is the smallest observation distance seen across
	// all samples, in meters.
	NearestDistance float64
}

// Estimator estimates pollutant exposure along a path from scattered
// observations using inverse distance weighting.
type Estimator struct {
	config EstimatorConfig
}

// NewEstimator creates a new Estimator with the given configuration.
func NewEstimator(config EstimatorConfig) *Estimator {
	defaults := DefaultEstimatorConfig()
	if config.SampleStepMeters <= 0 {
		config.SampleStepMeters = defaults.SampleStepMeters
	}
	if config.MaxDistance <= 0 {
		config.MaxDistance = defaults.MaxDistance
	}
	if config.MaxObservations <= 0 {
		config.MaxObservations = defaults.MaxObservations
	}
	if config.Power <= 0 {
		config.Power = defaults.Power
	}
	if config.HighConfidenceMaxDistance <= 0 {
		config.HighConfidenceMaxDistance = defaults.HighConfidenceMaxDistance
	}
	if config.MediumConfidenceMaxDistance <= 0 {
		config.MediumConfidenceMaxDistance = defaults.MediumConfidenceMaxDistance
	}
	return &Estimator{config: config}
}

// AlongPath estimates the mean observed value along the given waypoints.
// The path is resampled at SampleStepMeters intervals and each sample is
// estimated from its nearest observations.
func (e *Estimator) AlongPath(waypoints []geo.Point, observations []Observation) (*PathEstimate, error) {
	if len(waypoints) == 0 {
		return nil, ErrEmptyPath
	}
	if len(observations) == 0 {
		return nil, ErrNoObservations
	}

	samples := geo.SamplePath(waypoints, e.config.SampleStepMeters)

	var (
		total   float64
		count   int
		nearest = math.MaxFloat64
	)

	for _, p := range samples {
		value, dist, ok := e.estimateAt(p, observations)
		if !ok {
			continue
		}
		total += value
		count++
		if dist < nearest {
			nearest = dist
		}
	}

	if count == 0 {
		return nil, ErrNoObservations
	}

	return &PathEstimate{
		Value:           total / float64(count),
		Confidence:      e.confidence(nearest),
		SampleCount:     count,
		NearestDistance: nearest,
	}, nil
}

// estimateAt performs IDW estimation at a single point. Returns the
// estimate, the nearest observation distance, and whether any observation
// was in range.
func (e *Estimator) estimateAt(p geo.Point, observations []Observation) (float64, float64, bool) {
	type candidate struct {
		value    float64
		distance float64
	}

	candidates := make([]candidate, 0, len(observations))
	for _, obs := range observations {
		dist := geo.Haversine(p, obs.Point)
		if dist > e.config.MaxDistance {
			continue
		}
		candidates = append(candidates, candidate{value: obs.Value, distance: dist})
	}
	if len(candidates) == 0 {
		return 0, 0, false
	}

	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].distance < candidates[b].distance
	})
	if len(candidates) > e.config.MaxObservations {
		candidates = candidates[:e.config.MaxObservations]
	}

	// An observation effectively at the sample point wins outright.
	if candidates[0].distance < 1 {
		return candidates[0].value, candidates[0].distance, true
	}

	var weighted, totalWeight float64
	for _, c := range candidates {
		weight := 1.0 / math.Pow(c.distance, e.config.Power)
		weighted += c.value * weight
		totalWeight += weight
	}

	return weighted / totalWeight, candidates[0].distance, true
}

// confidence grades an estimate by its closest supporting observation.
func (e *Estimator) confidence(nearestDistance float64) Confidence {
	if nearestDistance <= e.config.HighConfidenceMaxDistance {
		return ConfidenceHigh
	}
	if nearestDistance <= e.config.MediumConfidenceMaxDistance {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

