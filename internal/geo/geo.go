// Package geo provides the coordinate and bounding-box primitives shared by
// the viewport, search, and air quality services. Points are WGS84; the
// underlying geometry type is paulmach/orb, which stores coordinates
// lon-first.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

var (
	// ErrInvalidCoordinates indicates a latitude or longitude outside the
	// valid WGS84 range.
	ErrInvalidCoordinates = errors.New("geo: invalid coordinates")

	// ErrInvalidBounds indicates a bounds value that could not be parsed or
	// whose corners are not ordered south-west before north-east.
	ErrInvalidBounds = errors.New("geo: invalid bounds")
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Orb converts the point to orb's lon-first representation.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb point back to lat/lon order.
func FromOrb(o orb.Point) Point {
	return Point{Lat: o.Lat(), Lon: o.Lon()}
}

// Valid reports whether the point lies within the WGS84 range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// ValidatePoint returns ErrInvalidCoordinates when p is out of range.
func ValidatePoint(p Point) error {
	if !p.Valid() {
		return fmt.Errorf("%w: lat=%f lon=%f", ErrInvalidCoordinates, p.Lat, p.Lon)
	}
	return nil
}

// Equal reports exact equality on both axes.
func (p Point) Equal(q Point) bool {
	return p.Lat == q.Lat && p.Lon == q.Lon
}

// Location is a named place: a coordinate plus the address it resolved from.
// Produced by geocoding or device geolocation and carried through search
// state and favorites.
type Location struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Point   Point  `json:"point"`
}

// Bounds is a rectangular region delimited by its south-west and north-east
// corners.
type Bounds struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
}

// NewBounds builds a Bounds from two corners, normalizing the corner order.
func NewBounds(a, b Point) Bounds {
	bound := orb.Bound{Min: a.Orb(), Max: a.Orb()}
	bound = bound.Extend(b.Orb())
	return fromOrbBound(bound)
}

func fromOrbBound(b orb.Bound) Bounds {
	return Bounds{SouthWest: FromOrb(b.Min), NorthEast: FromOrb(b.Max)}
}

// Orb converts to orb's bound type.
func (b Bounds) Orb() orb.Bound {
	return orb.Bound{Min: b.SouthWest.Orb(), Max: b.NorthEast.Orb()}
}

// IsZero reports whether the bounds is the zero value.
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Contains reports whether p lies within the bounds, edges inclusive.
func (b Bounds) Contains(p Point) bool {
	return b.Orb().Contains(p.Orb())
}

// Union returns the smallest bounds covering both b and other.
func (b Bounds) Union(other Bounds) Bounds {
	return fromOrbBound(b.Orb().Union(other.Orb()))
}

// Extend returns the bounds grown to include p.
func (b Bounds) Extend(p Point) Bounds {
	return fromOrbBound(b.Orb().Extend(p.Orb()))
}

// Center returns the midpoint of the bounds.
func (b Bounds) Center() Point {
	return FromOrb(b.Orb().Center())
}

// Width returns the longitudinal span in degrees.
func (b Bounds) Width() float64 {
	return b.NorthEast.Lon - b.SouthWest.Lon
}

// Height returns the latitudinal span in degrees.
func (b Bounds) Height() float64 {
	return b.NorthEast.Lat - b.SouthWest.Lat
}

// PadFraction grows the bounds by the given fraction of its own span on every
// side. A fraction of 0.1 adds a 10% margin, which is what the bounds-fit
// rules use so routes do not touch the viewport edge.
func (b Bounds) PadFraction(frac float64) Bounds {
	dLat := b.Height() * frac
	dLon := b.Width() * frac
	return Bounds{
		SouthWest: clampPoint(Point{Lat: b.SouthWest.Lat - dLat, Lon: b.SouthWest.Lon - dLon}),
		NorthEast: clampPoint(Point{Lat: b.NorthEast.Lat + dLat, Lon: b.NorthEast.Lon + dLon}),
	}
}

func clampPoint(p Point) Point {
	p.Lat = math.Max(-90, math.Min(90, p.Lat))
	p.Lon = math.Max(-180, math.Min(180, p.Lon))
	return p
}

// ValidateBounds checks corner ranges and ordering.
func ValidateBounds(b Bounds) error {
	if err := ValidatePoint(b.SouthWest); err != nil {
		return err
	}
	if err := ValidatePoint(b.NorthEast); err != nil {
		return err
	}
	if b.SouthWest.Lat >= b.NorthEast.Lat || b.SouthWest.Lon >= b.NorthEast.Lon {
		return fmt.Errorf("%w: south-west corner must be below and left of north-east", ErrInvalidBounds)
	}
	return nil
}

// ParseBounds parses the wire format "swLat,swLon,neLat,neLon".
func ParseBounds(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("%w: expected 4 comma-separated values, got %d", ErrInvalidBounds, len(parts))
	}
	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return Bounds{}, fmt.Errorf("%w: %q is not a number", ErrInvalidBounds, part)
		}
		vals[i] = v
	}
	b := Bounds{
		SouthWest: Point{Lat: vals[0], Lon: vals[1]},
		NorthEast: Point{Lat: vals[2], Lon: vals[3]},
	}
	if err := ValidateBounds(b); err != nil {
		return Bounds{}, err
	}
	return b, nil
}

// String renders the wire format accepted by ParseBounds.
func (b Bounds) String() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f",
		b.SouthWest.Lat, b.SouthWest.Lon, b.NorthEast.Lat, b.NorthEast.Lon)
}

// FitUnion returns the smallest bounds covering all points. The second return
// is false when points is empty.
func FitUnion(points ...Point) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	bound := orb.Bound{Min: points[0].Orb(), Max: points[0].Orb()}
	for _, p := range points[1:] {
		bound = bound.Extend(p.Orb())
	}
	return fromOrbBound(bound), true
}

// UnionBounds folds multiple bounds into one covering bounds. The second
// return is false when the slice is empty.
func UnionBounds(list ...Bounds) (Bounds, bool) {
	if len(list) == 0 {
		return Bounds{}, false
	}
	out := list[0]
	for _, b := range list[1:] {
		out = out.Union(b)
	}
	return out, true
}

// QuantizeKey snaps p onto a cellDeg-sized grid and renders it as a cache-key
// fragment. Two-decimal formatting matches the 0.01 degree cell used for
// upstream request coalescing.
func QuantizeKey(p Point, cellDeg float64) string {
	lat := math.Floor(p.Lat/cellDeg) * cellDeg
	lon := math.Floor(p.Lon/cellDeg) * cellDeg
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// QuantizedKey renders the bounds snapped to a cellDeg grid, corner by corner.
func (b Bounds) QuantizedKey(cellDeg float64) string {
	return QuantizeKey(b.SouthWest, cellDeg) + ":" + QuantizeKey(b.NorthEast, cellDeg)
}

const earthRadiusMeters = 6371000

// Haversine returns the great-circle distance between two points in meters.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// BoundsAround derives viewport bounds from a camera position. The span model
// is the Web Mercator approximation spanLat = 360/2^zoom with the longitude
// span stretched by the viewport aspect ratio; rendering clients own exact
// projection math, this only has to be stable for fit checks and cache keys.
func BoundsAround(center Point, zoom, aspect float64) Bounds {
	if aspect <= 0 {
		aspect = 1
	}
	spanLat := 360 / math.Pow(2, zoom)
	spanLon := spanLat * aspect
	return Bounds{
		SouthWest: clampPoint(Point{Lat: center.Lat - spanLat/2, Lon: center.Lon - spanLon/2}),
		NorthEast: clampPoint(Point{Lat: center.Lat + spanLat/2, Lon: center.Lon + spanLon/2}),
	}
}

// ZoomForBounds inverts BoundsAround: the zoom at which the given bounds just
// fits the viewport. Clamped by the caller.
func ZoomForBounds(b Bounds, aspect float64) float64 {
	if aspect <= 0 {
		aspect = 1
	}
	spanLat := b.Height()
	if lonAsLat := b.Width() / aspect; lonAsLat > spanLat {
		spanLat = lonAsLat
	}
	if spanLat <= 0 {
		return 19
	}
	return math.Log2(360 / spanLat)
}
