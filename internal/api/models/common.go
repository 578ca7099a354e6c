// Package models defines the wire types of the CleanAirRoute API: request
// bodies with their validation tags, response shapes mapped from the domain
// packages, and the RFC 7807 problem envelope.
package models

import (
	"time"

	"github.com/cleanairroute/cleanairroute/internal/geo"
)

// Point is a request coordinate pair.
type Point struct {
	Lat float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

// Geo converts the wire point to the domain representation.
func (p Point) Geo() geo.Point {
	return geo.Point{Lat: p.Lat, Lon: p.Lon}
}

// LocationInput names a coordinate in search and favorite requests.
type LocationInput struct {
	Name    string `json:"name,omitempty" validate:"max=120"`
	Address string `json:"address,omitempty" validate:"max=240"`
	Point   Point  `json:"point"`
}

// Geo converts the wire location to the domain representation.
func (l LocationInput) Geo() geo.Location {
	return geo.Location{Name: l.Name, Address: l.Address, Point: l.Point.Geo()}
}

// Timestamp is a helper type for time.Time with RFC 3339 JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	// Remove quotes
	s := string(data[1 : len(data)-1])
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// timestampPtr converts a time pointer, keeping nil.
func timestampPtr(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := Timestamp(*t)
	return &ts
}
