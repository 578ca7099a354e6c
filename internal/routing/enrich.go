package routing

import (
	"github.com/cleanairroute/cleanairroute/internal/airquality"
	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// exposureEstimator samples routes every 200 m and blends the three nearest
// heatmap cells per sample.
var exposureEstimator = NewEstimator(EstimatorConfig{
	SampleStepMeters: 200,
	MaxObservations:  3,
	Power:            2,
})

// EstimateExposure derives a route's exposure from a heatmap when the engine
// omitted it. Only the heatmap's own pollutant can be estimated; the result
// is rounded to display precision. The second return is false when the route
// has no usable geometry, the heatmap is empty, or no cell lies within range
// of the path.
func EstimateExposure(r Route, hm *airquality.Heatmap) (Exposure, bool) {
	if hm == nil || len(hm.Cells) == 0 {
		return Exposure{}, false
	}

	waypoints := r.Waypoints
	if len(waypoints) == 0 && r.Polyline != "" {
		waypoints = geo.DecodePolyline(r.Polyline)
	}
	if len(waypoints) == 0 {
		return Exposure{}, false
	}

	observations := make([]Observation, 0, len(hm.Cells))
	for _, cell := range hm.Cells {
		observations = append(observations, Observation{Point: cell.Point, Value: cell.Intensity})
	}

	estimate, err := exposureEstimator.AlongPath(waypoints, observations)
	if err != nil {
		return Exposure{}, false
	}

	var exp Exposure
	switch hm.Pollutant {
	case airquality.PollutantPM25:
		exp.PM25 = estimate.Value
	case airquality.PollutantPM10:
		exp.PM10 = estimate.Value
	case airquality.PollutantO3:
		exp.O3 = estimate.Value
	case airquality.PollutantNO2:
		exp.NO2 = estimate.Value
	default:
		return Exposure{}, false
	}
	return exp.Rounded(), true
}
