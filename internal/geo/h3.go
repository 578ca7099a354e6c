package geo

import (
	"github.com/uber/h3-go/v4"
)

// H3 resolution levels used by the cache warmer.
// See: https://h3geo.org/docs/core-library/restable
const (
	// H3ResolutionWarm tiles the metro area for current-conditions warming
	// (~1.2 km edge, ~5.16 km²).
	H3ResolutionWarm = 7

	// H3ResolutionCity is used for coarse city-level aggregation
	// (~3.2 km edge, ~36.13 km²).
	H3ResolutionCity = 6
)

// CoverCells returns the H3 cells at the given resolution whose union covers
// the bounds. Falls back to the single cell containing the bounds center when
// the polyfill fails.
func CoverCells(b Bounds, resolution int) []h3.Cell {
	loop := h3.GeoLoop{
		h3.NewLatLng(b.SouthWest.Lat, b.SouthWest.Lon),
		h3.NewLatLng(b.SouthWest.Lat, b.NorthEast.Lon),
		h3.NewLatLng(b.NorthEast.Lat, b.NorthEast.Lon),
		h3.NewLatLng(b.NorthEast.Lat, b.SouthWest.Lon),
	}
	cells, err := h3.PolygonToCells(h3.GeoPolygon{GeoLoop: loop}, resolution)
	if err != nil || len(cells) == 0 {
		center := b.Center()
		cell, cerr := h3.LatLngToCell(h3.NewLatLng(center.Lat, center.Lon), resolution)
		if cerr != nil {
			return nil
		}
		return []h3.Cell{cell}
	}
	return cells
}

// CellCenter returns the center point of an H3 cell.
func CellCenter(cell h3.Cell) (Point, error) {
	ll, err := cell.LatLng()
	if err != nil {
		return Point{}, err
	}
	return Point{Lat: ll.Lat, Lon: ll.Lng}, nil
}
