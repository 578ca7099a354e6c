package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanairroute/cleanairroute/internal/geo"
	"github.com/cleanairroute/cleanairroute/internal/routing"
)

// cityHallToNamsan is a ~1.9km path through central Seoul.
var cityHallToNamsan = []geo.Point{
	{Lat: 37.5665, Lon: 126.9780},
	{Lat: 37.5512, Lon: 126.9882},
}

func TestEstimator_AlongPath_BasicIDW(t *testing.T) {
	estimator := routing.NewEstimator(routing.DefaultEstimatorConfig())

	// Clean air near the start, dirtier near the end.
	observations := []routing.Observation{
		{Point: geo.Point{Lat: 37.5665, Lon: 126.9780}, Value: 10},
		{Point: geo.Point{Lat: 37.5512, Lon: 126.9882}, Value: 30},
	}

	estimate, err := estimator.AlongPath(cityHallToNamsan, observations)
	require.NoError(t, err)
	require.NotNil(t, estimate)

	assert.True(t, estimate.Value > 12 && estimate.Value < 28,
		"path mean should sit between the endpoint values, got %f", estimate.Value)
	assert.True(t, estimate.SampleCount > 2, "path should be resampled into multiple points")
}

func TestEstimator_AlongPath_ExactObservationLocation(t *testing.T) {
	estimator := routing.NewEstimator(routing.DefaultEstimatorConfig())

	point := geo.Point{Lat: 37.5665, Lon: 126.9780}
	observations := []routing.Observation{
		{Point: point, Value: 42},
	}

	estimate, err := estimator.AlongPath([]geo.Point{point}, observations)
	require.NoError(t, err)
	assert.InDelta(t, 42.0, estimate.Value, 0.001, "estimate at the observation should match it")
	assert.Equal(t, routing.ConfidenceHigh, estimate.Confidence)
}

func TestEstimator_AlongPath_NoObservations(t *testing.T) {
	estimator := routing.NewEstimator(routing.DefaultEstimatorConfig())

	_, err := estimator.AlongPath(cityHallToNamsan, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, routing.ErrNoObservations)
}

func TestEstimator_AlongPath_EmptyPath(t *testing.T) {
	estimator := routing.NewEstimator(routing.DefaultEstimatorConfig())

	observations := []routing.Observation{
		{Point: geo.Point{Lat: 37.5665, Lon: 126.9780}, Value: 10},
	}

	_, err := estimator.AlongPath(nil, observations)
	require.Error(t, err)
	assert.ErrorIs(t, err, routing.ErrEmptyPath)
}

func TestEstimator_AlongPath_ObservationsOutOfRange(t *testing.T) {
	estimator := routing.NewEstimator(routing.EstimatorConfig{
		MaxDistance: 500,
	})

	// Incheon is ~27km west of the path.
	observations := []routing.Observation{
		{Point: geo.Point{Lat: 37.4563, Lon: 126.7052}, Value: 80},
	}

	_, err := estimator.AlongPath(cityHallToNamsan, observations)
	require.Error(t, err)
	assert.ErrorIs(t, err, routing.ErrNoObservations)
}

func TestEstimator_AlongPath_CloserObservationsDominate(t *testing.T) {
	estimator := routing.NewEstimator(routing.DefaultEstimatorConfig())

	point := geo.Point{Lat: 37.5665, Lon: 126.9780}
	observations := []routing.Observation{
		// ~100m east of the point.
		{Point: geo.Point{Lat: 37.5665, Lon: 126.9791}, Value: 10},
		// ~2km south.
		{Point: geo.Point{Lat: 37.5485, Lon: 126.9780}, Value: 100},
	}

	estimate, err := estimator.AlongPath([]geo.Point{point}, observations)
	require.NoError(t, err)
	assert.True(t, estimate.Value < 20, "closer observation should dominate: got %f", estimate.Value)
}

func TestEstimator_AlongPath_Confidence(t *testing.T) {
	point := geo.Point{Lat: 37.5665, Lon: 126.9780}

	tests := []struct {
		name     string
		obsPoint geo.Point
		expected routing.Confidence
	}{
		{
			name:     "high confidence within 800m",
			obsPoint: geo.Point{Lat: 37.5700, Lon: 126.9780}, // ~390m north
			expected: routing.ConfidenceHigh,
		},
		{
			name:     "medium confidence within 1600m",
			obsPoint: geo.Point{Lat: 37.5775, Lon: 126.9780}, // ~1.2km north
			expected: routing.ConfidenceMedium,
		},
		{
			name:     "low confidence beyond 1600m",
			obsPoint: geo.Point{Lat: 37.5850, Lon: 126.9780}, // ~2.1km north
			expected: routing.ConfidenceLow,
		},
	}

	estimator := routing.NewEstimator(routing.DefaultEstimatorConfig())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observations := []routing.Observation{{Point: tt.obsPoint, Value: 25}}

			estimate, err := estimator.AlongPath([]geo.Point{point}, observations)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, estimate.Confidence)
		})
	}
}

func TestEstimator_AlongPath_PartialCoverage(t *testing.T) {
	estimator := routing.NewEstimator(routing.EstimatorConfig{
		MaxDistance: 400,
	})

	// Only the start of the path has a nearby observation.
	observations := []routing.Observation{
		{Point: geo.Point{Lat: 37.5665, Lon: 126.9780}, Value: 15},
	}

	estimate, err := estimator.AlongPath(cityHallToNamsan, observations)
	require.NoError(t, err)

	full := geo.SamplePath(cityHallToNamsan, 200)
	assert.Less(t, estimate.SampleCount, len(full),
		"samples far from the observation should be skipped")
	assert.InDelta(t, 15.0, estimate.Value, 1.0)
}
