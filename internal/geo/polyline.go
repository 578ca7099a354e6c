package geo

import "math"

// Polyline encoding and decoding per Google's polyline algorithm at
// precision 5, the format used by the route engine and ORS-style providers.
// https://developers.google.com/maps/documentation/utilities/polylinealgorithm

// DecodePolyline decodes a polyline-encoded string into points.
func DecodePolyline(encoded string) []Point {
	if encoded == "" {
		return nil
	}

	var points []Point
	index := 0
	lat := 0
	lon := 0

	for index < len(encoded) {
		latDelta, newIndex := decodePolylineValue(encoded, index)
		index = newIndex
		lat += latDelta

		lonDelta, newIndex := decodePolylineValue(encoded, index)
		index = newIndex
		lon += lonDelta

		points = append(points, Point{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}

	return points
}

// decodePolylineValue decodes a single delta value starting at index.
// Returns the delta and the new index position.
func decodePolylineValue(encoded string, index int) (int, int) {
	shift := 0
	result := 0

	for index < len(encoded) {
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	// Two's complement for negative values.
	if result&1 != 0 {
		return ^(result >> 1), index
	}
	return result >> 1, index
}

// EncodePolyline encodes points into a polyline string at precision 5.
func EncodePolyline(points []Point) string {
	if len(points) == 0 {
		return ""
	}

	encoded := make([]byte, 0, len(points)*4)
	prevLat := 0
	prevLon := 0

	for _, p := range points {
		lat := int(math.Round(p.Lat * 1e5))
		lon := int(math.Round(p.Lon * 1e5))

		encoded = encodePolylineValue(encoded, lat-prevLat)
		encoded = encodePolylineValue(encoded, lon-prevLon)

		prevLat = lat
		prevLon = lon
	}

	return string(encoded)
}

// encodePolylineValue encodes a single delta using the polyline algorithm.
func encodePolylineValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}

	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	buf = append(buf, byte(value)+63)

	return buf
}

// PathLength returns the total length of a path in meters.
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var total float64
	for i := 1; i < len(points); i++ {
		total += Haversine(points[i-1], points[i])
	}
	return total
}

// SamplePath returns points sampled at approximately the given interval
// along the path, carrying accumulated distance across vertices. The first
// and last points are always included. Used to pick exposure sampling
// points along a route.
func SamplePath(points []Point, intervalMeters float64) []Point {
	if len(points) == 0 {
		return nil
	}
	if intervalMeters <= 0 {
		return points
	}

	sampled := []Point{points[0]}
	accumulated := 0.0

	for i := 1; i < len(points); i++ {
		prev, next := points[i-1], points[i]
		segmentLen := Haversine(prev, next)
		if segmentLen == 0 {
			continue
		}

		// offset tracks how far into this segment samples have been placed.
		offset := 0.0
		for accumulated+(segmentLen-offset) >= intervalMeters {
			offset += intervalMeters - accumulated
			accumulated = 0

			fraction := offset / segmentLen
			sampled = append(sampled, Point{
				Lat: prev.Lat + fraction*(next.Lat-prev.Lat),
				Lon: prev.Lon + fraction*(next.Lon-prev.Lon),
			})
		}
		accumulated += segmentLen - offset
	}

	last := points[len(points)-1]
	if sampled[len(sampled)-1] != last {
		sampled = append(sampled, last)
	}

	return sampled
}
