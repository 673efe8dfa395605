package detect

import (
	"fmt"

	"geofleet/api/internal/geo"
)

// ShapeKind tags the geometry variant of a zone.
type ShapeKind string

const (
	ShapeCircle  ShapeKind = "circle"
	ShapePolygon ShapeKind = "polygon"
)

// Shape is the tagged union of zone geometries. Exactly one of Circle or
// Polygon is meaningful, selected by Kind.
type Shape struct {
	Kind    ShapeKind
	Circle  Circle
	Polygon Polygon
}

// Circle is a center point with a radius in meters.
type Circle struct {
	Center geo.Point
	Radius float64
}

// Polygon is a closed exterior ring with optional hole rings.
type Polygon struct {
	Exterior []geo.Point
	Holes    [][]geo.Point
}

// Validate rejects structurally invalid geometry. It is called when zone
// configuration is loaded; Contains assumes a validated shape.
func (s Shape) Validate() error {
	switch s.Kind {
	case ShapeCircle:
		if !s.Circle.Center.Valid() {
			return fmt.Errorf("circle center out of range")
		}
		if s.Circle.Radius <= 0 {
			return fmt.Errorf("circle radius must be positive, got %v", s.Circle.Radius)
		}
		return nil
	case ShapePolygon:
		if err := validateRing(s.Polygon.Exterior); err != nil {
			return fmt.Errorf("exterior ring: %w", err)
		}
		for i, hole := range s.Polygon.Holes {
			if err := validateRing(hole); err != nil {
				return fmt.Errorf("hole ring %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported shape kind %q", s.Kind)
	}
}

// validateRing requires a closed ring of at least 4 points (3 distinct plus
// the repeated first), all with finite in-range coordinates.
func validateRing(ring []geo.Point) error {
	if len(ring) < 4 {
		return fmt.Errorf("ring needs at least 4 points (3 distinct, closed), got %d", len(ring))
	}
	if ring[0] != ring[len(ring)-1] {
		return fmt.Errorf("ring is not closed")
	}
	for i, p := range ring {
		if !p.Valid() {
			return fmt.Errorf("point %d out of range", i)
		}
	}
	return nil
}

// Contains reports whether p lies inside the shape, dispatching on the
// geometry variant. Boundary points are contained.
func (s Shape) Contains(p geo.Point) bool {
	switch s.Kind {
	case ShapeCircle:
		return geo.PointInCircle(p, s.Circle.Center, s.Circle.Radius)
	case ShapePolygon:
		return geo.PointInPolygon(p, s.Polygon.Exterior, s.Polygon.Holes)
	default:
		return false
	}
}
