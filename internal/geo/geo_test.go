package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// squareRing is the closed 4x4 ring used throughout the containment tests.
var squareRing = []Point{
	{Lat: 0, Lon: 0},
	{Lat: 4, Lon: 0},
	{Lat: 4, Lon: 4},
	{Lat: 0, Lon: 4},
	{Lat: 0, Lon: 0},
}

func TestHaversine(t *testing.T) {
	// One degree of latitude is ~111.19 km on a 6371 km sphere.
	d := Haversine(Point{Lat: 0, Lon: 0}, Point{Lat: 1, Lon: 0})
	assert.InDelta(t, 111195, d, 10)

	assert.Equal(t, 0.0, Haversine(Point{Lat: 48.85, Lon: 2.35}, Point{Lat: 48.85, Lon: 2.35}))
}

func TestPointInCircle(t *testing.T) {
	center := Point{Lat: 4.05, Lon: 9.7}

	assert.True(t, PointInCircle(center, center, 0), "center is inside for any radius >= 0")
	assert.True(t, PointInCircle(center, center, 100))

	// 0.001 degrees latitude is ~111 m in the flat model; stay clear of the
	// boundary so float rounding cannot flip the result.
	near := Point{Lat: center.Lat + 0.001, Lon: center.Lon}
	assert.True(t, PointInCircle(near, center, 120))
	assert.False(t, PointInCircle(near, center, 100), "point past the radius is outside")

	assert.False(t, PointInCircle(near, center, -1), "negative radius contains nothing")
}

func TestPointInCircleBoundaryInclusive(t *testing.T) {
	// 2^-9 degrees is exactly representable, and so is its meter equivalent
	// (216.796875), so the on-the-radius case carries no rounding error.
	const offsetDeg = 0.001953125
	origin := Point{}
	edge := Point{Lat: offsetDeg, Lon: 0}

	assert.True(t, PointInCircle(edge, origin, offsetDeg*MetersPerDegree), "point exactly on the radius is inside")
	assert.False(t, PointInCircle(edge, origin, 216))
}

func TestPointInPolygon(t *testing.T) {
	assert.True(t, PointInPolygon(Point{Lat: 2, Lon: 2}, squareRing, nil))
	assert.False(t, PointInPolygon(Point{Lat: 5, Lon: 5}, squareRing, nil))

	// Boundary points are contained by policy.
	assert.True(t, PointInPolygon(Point{Lat: 0, Lon: 2}, squareRing, nil))
	assert.True(t, PointInPolygon(Point{Lat: 4, Lon: 4}, squareRing, nil), "vertex is contained")
}

func TestPointInPolygonWithHole(t *testing.T) {
	hole := []Point{
		{Lat: 1, Lon: 1},
		{Lat: 3, Lon: 1},
		{Lat: 3, Lon: 3},
		{Lat: 1, Lon: 3},
		{Lat: 1, Lon: 1},
	}

	assert.False(t, PointInPolygon(Point{Lat: 2, Lon: 2}, squareRing, [][]Point{hole}), "inside the hole is outside")
	assert.True(t, PointInPolygon(Point{Lat: 0.5, Lon: 0.5}, squareRing, [][]Point{hole}))
	assert.True(t, PointInPolygon(Point{Lat: 1, Lon: 2}, squareRing, [][]Point{hole}), "hole boundary is still contained")
}

func TestDistanceToPolyline(t *testing.T) {
	line := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 0, Lon: 2},
	}

	// 0.001 degrees off the line == 111 m flat.
	d := DistanceToPolyline(Point{Lat: 0.001, Lon: 0.5}, line)
	assert.InDelta(t, 111, d, 1e-6)

	// A point on the line is at distance zero.
	assert.InDelta(t, 0, DistanceToPolyline(Point{Lat: 0, Lon: 1.5}, line), 1e-9)

	// Beyond the last vertex the distance is measured to the endpoint.
	d = DistanceToPolyline(Point{Lat: 0, Lon: 3}, line)
	assert.InDelta(t, MetersPerDegree, d, 1e-6)
}

func TestClosestVertex(t *testing.T) {
	line := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 0, Lon: 2},
	}

	v, ok := ClosestVertex(Point{Lat: 0.1, Lon: 0.9}, line)
	assert.True(t, ok)
	assert.Equal(t, Point{Lat: 0, Lon: 1}, v)

	_, ok = ClosestVertex(Point{}, nil)
	assert.False(t, ok)
}

func TestPolylineLength(t *testing.T) {
	line := []Point{
		{Lat: 0, Lon: 0},
		{Lat: 1, Lon: 0},
		{Lat: 2, Lon: 0},
	}
	assert.InDelta(t, 2*111195, PolylineLength(line), 20)
	assert.Equal(t, 0.0, PolylineLength(line[:1]))
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Lat: 48.85, Lon: 2.35}.Valid())
	assert.False(t, Point{Lat: 91, Lon: 0}.Valid())
	assert.False(t, Point{Lat: math.NaN(), Lon: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lon: math.Inf(1)}.Valid())
}
