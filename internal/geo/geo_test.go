package geo

import (
	"math"
	"testing"
)

func TestParseBounds(t *testing.T) {
	b, err := ParseBounds("37.40,126.70,37.70,127.20")
	if err != nil {
		t.Fatalf("ParseBounds returned error: %v", err)
	}
	if b.SouthWest.Lat != 37.40 || b.SouthWest.Lon != 126.70 {
		t.Errorf("unexpected south-west corner: %+v", b.SouthWest)
	}
	if b.NorthEast.Lat != 37.70 || b.NorthEast.Lon != 127.20 {
		t.Errorf("unexpected north-east corner: %+v", b.NorthEast)
	}
}

func TestParseBoundsRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"37.40,126.70,37.70",
		"37.40,126.70,37.70,127.20,1",
		"a,b,c,d",
		"37.70,126.70,37.40,127.20", // corners swapped on latitude
		"37.40,127.20,37.70,126.70", // corners swapped on longitude
		"91,126.70,92,127.20",       // out of range
	}
	for _, in := range cases {
		if _, err := ParseBounds(in); err == nil {
			t.Errorf("ParseBounds(%q) should have failed", in)
		}
	}
}

func TestBoundsRoundTrip(t *testing.T) {
	b := NewBounds(Point{Lat: 37.40, Lon: 126.70}, Point{Lat: 37.70, Lon: 127.20})
	parsed, err := ParseBounds(b.String())
	if err != nil {
		t.Fatalf("round trip parse failed: %v", err)
	}
	if parsed != b {
		t.Errorf("round trip changed bounds: got %+v want %+v", parsed, b)
	}
}

func TestNewBoundsNormalizesCorners(t *testing.T) {
	b := NewBounds(Point{Lat: 37.70, Lon: 127.20}, Point{Lat: 37.40, Lon: 126.70})
	if b.SouthWest.Lat != 37.40 || b.NorthEast.Lat != 37.70 {
		t.Errorf("corners not normalized: %+v", b)
	}
}

func TestUnionCoversBoth(t *testing.T) {
	a := NewBounds(Point{Lat: 37.50, Lon: 126.90}, Point{Lat: 37.60, Lon: 127.00})
	b := NewBounds(Point{Lat: 37.55, Lon: 126.95}, Point{Lat: 37.65, Lon: 127.10})

	u := a.Union(b)
	for _, p := range []Point{a.SouthWest, a.NorthEast, b.SouthWest, b.NorthEast} {
		if !u.Contains(p) {
			t.Errorf("union does not contain %+v", p)
		}
	}
	if u.SouthWest.Lat != 37.50 || u.NorthEast.Lon != 127.10 {
		t.Errorf("unexpected union: %+v", u)
	}
}

func TestFitUnion(t *testing.T) {
	if _, ok := FitUnion(); ok {
		t.Error("FitUnion of no points should report false")
	}

	b, ok := FitUnion(
		Point{Lat: 37.5665, Lon: 126.9780},
		Point{Lat: 37.5512, Lon: 126.9882},
	)
	if !ok {
		t.Fatal("FitUnion reported empty for two points")
	}
	if b.SouthWest.Lat != 37.5512 || b.NorthEast.Lat != 37.5665 {
		t.Errorf("unexpected latitude span: %+v", b)
	}
	if b.SouthWest.Lon != 126.9780 || b.NorthEast.Lon != 126.9882 {
		t.Errorf("unexpected longitude span: %+v", b)
	}
}

func TestPadFraction(t *testing.T) {
	b := NewBounds(Point{Lat: 37.50, Lon: 126.90}, Point{Lat: 37.60, Lon: 127.00})
	padded := b.PadFraction(0.1)

	if padded.Height() <= b.Height() || padded.Width() <= b.Width() {
		t.Errorf("padding did not grow bounds: %+v", padded)
	}
	if math.Abs(padded.Height()-0.12) > 1e-9 {
		t.Errorf("expected height 0.12, got %f", padded.Height())
	}
	if !padded.Contains(b.SouthWest) || !padded.Contains(b.NorthEast) {
		t.Error("padded bounds must contain the original corners")
	}
}

func TestQuantizeKey(t *testing.T) {
	// Points inside the same 0.01 degree cell share a key.
	a := QuantizeKey(Point{Lat: 37.5665, Lon: 126.9780}, 0.01)
	b := QuantizeKey(Point{Lat: 37.5669, Lon: 126.9789}, 0.01)
	if a != b {
		t.Errorf("expected same cell key, got %q and %q", a, b)
	}

	c := QuantizeKey(Point{Lat: 37.5712, Lon: 126.9780}, 0.01)
	if a == c {
		t.Errorf("points in different cells must not share key %q", a)
	}
}

func TestHaversineSeoulDistance(t *testing.T) {
	// City Hall to Namsan is roughly 1.9 km.
	d := Haversine(Point{Lat: 37.5665, Lon: 126.9780}, Point{Lat: 37.5512, Lon: 126.9882})
	if d < 1700 || d > 2200 {
		t.Errorf("expected ~1.9km, got %.0fm", d)
	}

	if d := Haversine(Point{Lat: 37.5, Lon: 127.0}, Point{Lat: 37.5, Lon: 127.0}); d != 0 {
		t.Errorf("zero distance expected, got %f", d)
	}
}

func TestBoundsAroundAndZoomRoundTrip(t *testing.T) {
	center := Point{Lat: 37.5665, Lon: 126.9780}
	b := BoundsAround(center, 12, 1)

	got := b.Center()
	if math.Abs(got.Lat-center.Lat) > 1e-9 || math.Abs(got.Lon-center.Lon) > 1e-9 {
		t.Errorf("bounds not centered: %+v", got)
	}

	zoom := ZoomForBounds(b, 1)
	if math.Abs(zoom-12) > 1e-6 {
		t.Errorf("expected zoom 12, got %f", zoom)
	}
}

func TestBoundsAroundClampsAtPoles(t *testing.T) {
	b := BoundsAround(Point{Lat: 89.9, Lon: 0}, 2, 1)
	if b.NorthEast.Lat > 90 {
		t.Errorf("latitude must clamp at 90, got %f", b.NorthEast.Lat)
	}
}

func TestCoverCellsReturnsCells(t *testing.T) {
	b := NewBounds(Point{Lat: 37.40, Lon: 126.70}, Point{Lat: 37.70, Lon: 127.20})
	cells := CoverCells(b, H3ResolutionWarm)
	if len(cells) == 0 {
		t.Fatal("expected at least one covering cell")
	}
	for _, cell := range cells {
		if _, err := CellCenter(cell); err != nil {
			t.Fatalf("cell center failed: %v", err)
		}
	}
}
