package unigraph

import (
	"fmt"
	"math"
	"strings"
)

// Point is a WGS-84 coordinate with an optional altitude.
type Point struct {
	Longitude float64
	Latitude  float64
	Altitude  *float64
}

// Validate checks coordinate ranges.
func (p Point) Validate() error {
	switch {
	case math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180:
		return Errorf(KindInvalidPropertyType, "point: longitude %v out of range", p.Longitude)
	case math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90:
		return Errorf(KindInvalidPropertyType, "point: latitude %v out of range", p.Latitude)
	case p.Altitude != nil && math.IsNaN(*p.Altitude):
		return Errorf(KindInvalidPropertyType, "point: altitude is NaN")
	}
	return nil
}

// Coordinates returns the GeoJSON coordinate array of the point.
func (p Point) Coordinates() []float64 {
	if p.Altitude != nil {
		return []float64{p.Longitude, p.Latitude, *p.Altitude}
	}
	return []float64{p.Longitude, p.Latitude}
}

// String returns the WKT form.
func (p Point) String() string {
	return "POINT(" + wktCoord(p) + ")"
}

// PointFromCoordinates builds a point from a GeoJSON coordinate array.
func PointFromCoordinates(c []float64) (Point, error) {
	switch len(c) {
	case 2:
		return Point{Longitude: c[0], Latitude: c[1]}, nil
	case 3:
		alt := c[2]
		return Point{Longitude: c[0], Latitude: c[1], Altitude: &alt}, nil
	}
	return Point{}, Errorf(KindInvalidPropertyType, "point: expected 2 or 3 coordinates, got %d", len(c))
}

// LineString is an ordered sequence of at least two points.
type LineString struct {
	Points []Point
}

// Validate checks the points.
func (l LineString) Validate() error {
	if len(l.Points) < 2 {
		return Errorf(KindInvalidPropertyType, "linestring: need at least 2 points, got %d", len(l.Points))
	}
	for _, p := range l.Points {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// String returns the WKT form.
func (l LineString) String() string {
	return "LINESTRING(" + wktRing(l.Points) + ")"
}

// Polygon is an exterior ring with optional interior rings (holes).
type Polygon struct {
	Exterior []Point
	Holes    [][]Point
}

// Validate checks that every ring has at least four points and is closed.
func (p Polygon) Validate() error {
	if err := validateRing(p.Exterior); err != nil {
		return err
	}
	for _, h := range p.Holes {
		if err := validateRing(h); err != nil {
			return err
		}
	}
	return nil
}

// Rings returns the exterior ring followed by the holes.
func (p Polygon) Rings() [][]Point {
	return append([][]Point{p.Exterior}, p.Holes...)
}

// String returns the WKT form.
func (p Polygon) String() string {
	rings := make([]string, 0, 1+len(p.Holes))
	for _, r := range p.Rings() {
		rings = append(rings, "("+wktRing(r)+")")
	}
	return "POLYGON(" + strings.Join(rings, ", ") + ")"
}

func validateRing(r []Point) error {
	if len(r) < 4 {
		return Errorf(KindInvalidPropertyType, "polygon: ring needs at least 4 points, got %d", len(r))
	}
	if !pointEqual(r[0], r[len(r)-1]) {
		return Errorf(KindInvalidPropertyType, "polygon: ring is not closed")
	}
	for _, pt := range r {
		if err := pt.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func wktCoord(p Point) string {
	if p.Altitude != nil {
		return fmt.Sprintf("%g %g %g", p.Longitude, p.Latitude, *p.Altitude)
	}
	return fmt.Sprintf("%g %g", p.Longitude, p.Latitude)
}

func wktRing(pts []Point) string {
	s := make([]string, len(pts))
	for i, p := range pts {
		s[i] = wktCoord(p)
	}
	return strings.Join(s, ", ")
}

func pointEqual(a, b Point) bool {
	if a.Longitude != b.Longitude || a.Latitude != b.Latitude {
		return false
	}
	if a.Altitude == nil || b.Altitude == nil {
		return a.Altitude == nil && b.Altitude == nil
	}
	return *a.Altitude == *b.Altitude
}

func pointsEqual(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !pointEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
