package airquality

import "math"

// Pollutant ceilings for the 0-100 cleanliness score. A pollutant at or above
// its ceiling contributes zero.
const (
	scoreCeilingPM25 = 150.0 // µg/m³
	scoreCeilingPM10 = 300.0 // µg/m³
	scoreCeilingO3   = 0.2   // ppm
)

// Score weights: PM2.5 dominates health impact, then PM10, then ozone.
const (
	scoreWeightPM25 = 0.5
	scoreWeightPM10 = 0.3
	scoreWeightO3   = 0.2
)

// Score computes the 0-100 cleanliness score from raw concentrations.
// Each pollutant maps linearly from its ceiling to a 0-100 subscore, floored
// at zero, then the subscores combine by fixed weights.
func Score(pm25, pm10, o3 float64) int {
	sub := func(value, ceiling float64) float64 {
		s := 100 - value/ceiling*100
		if s < 0 {
			return 0
		}
		return s
	}
	total := sub(pm25, scoreCeilingPM25)*scoreWeightPM25 +
		sub(pm10, scoreCeilingPM10)*scoreWeightPM10 +
		sub(o3, scoreCeilingO3)*scoreWeightO3
	return int(math.Round(total))
}

// gradeThreshold is the upper bound of a grade for all three pollutants.
type gradeThreshold struct {
	grade Grade
	pm25  float64
	pm10  float64
	o3    float64
}

// The ladder follows the Korean CAI bands. A grade applies only when every
// pollutant sits within its band; one bad pollutant drags the whole reading
// down.
var gradeLadder = []gradeThreshold{
	{GradeGood, 15, 30, 0.03},
	{GradeModerate, 35, 80, 0.09},
	{GradeUnhealthy, 75, 150, 0.15},
	{GradeVeryUnhealthy, 150, 300, 0.2},
}

// GradeBand is the upper concentration bound of one grade on the ladder.
type GradeBand struct {
	Grade   Grade
	MaxPM25 float64
	MaxPM10 float64
	MaxO3   float64
}

// GradeBands returns the ladder from best to worst. The hazardous band is
// open-ended and not listed.
func GradeBands() []GradeBand {
	bands := make([]GradeBand, len(gradeLadder))
	for i, t := range gradeLadder {
		bands[i] = GradeBand{Grade: t.grade, MaxPM25: t.pm25, MaxPM10: t.pm10, MaxO3: t.o3}
	}
	return bands
}

// GradeFor returns the joint worst-grade bucket for the given concentrations.
func GradeFor(pm25, pm10, o3 float64) Grade {
	for _, t := range gradeLadder {
		if pm25 <= t.pm25 && pm10 <= t.pm10 && o3 <= t.o3 {
			return t.grade
		}
	}
	return GradeHazardous
}

// ParseGrade maps a wire grade string to a Grade, defaulting unknown values
// to the grade computed from concentrations by the caller.
func ParseGrade(s string) (Grade, bool) {
	switch Grade(s) {
	case GradeGood, GradeModerate, GradeUnhealthy, GradeVeryUnhealthy, GradeHazardous:
		return Grade(s), true
	default:
		return "", false
	}
}
