package detect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"geofleet/api/internal/geo"
)

func circleShape(lat, lon, radius float64) Shape {
	return Shape{Kind: ShapeCircle, Circle: Circle{Center: geo.Point{Lat: lat, Lon: lon}, Radius: radius}}
}

func squareShape() Shape {
	return Shape{Kind: ShapePolygon, Polygon: Polygon{Exterior: []geo.Point{
		{Lat: 0, Lon: 0}, {Lat: 4, Lon: 0}, {Lat: 4, Lon: 4}, {Lat: 0, Lon: 4}, {Lat: 0, Lon: 0},
	}}}
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, circleShape(4, 9, 500).Validate())
	assert.Error(t, circleShape(4, 9, 0).Validate(), "zero radius")
	assert.Error(t, circleShape(4, 9, -10).Validate())
	assert.Error(t, circleShape(math.NaN(), 9, 100).Validate())

	assert.NoError(t, squareShape().Validate())

	open := Shape{Kind: ShapePolygon, Polygon: Polygon{Exterior: []geo.Point{
		{Lat: 0, Lon: 0}, {Lat: 4, Lon: 0}, {Lat: 4, Lon: 4}, {Lat: 0, Lon: 4},
	}}}
	assert.Error(t, open.Validate(), "unclosed ring")

	tiny := Shape{Kind: ShapePolygon, Polygon: Polygon{Exterior: []geo.Point{
		{Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 0},
	}}}
	assert.Error(t, tiny.Validate(), "fewer than 3 distinct points")

	assert.Error(t, Shape{Kind: "ellipse"}.Validate())
}

func TestShapeContainsDispatch(t *testing.T) {
	c := circleShape(4.05, 9.7, 500)
	assert.True(t, c.Contains(geo.Point{Lat: 4.05, Lon: 9.7}))
	assert.False(t, c.Contains(geo.Point{Lat: 4.2, Lon: 9.7}))

	p := squareShape()
	assert.True(t, p.Contains(geo.Point{Lat: 2, Lon: 2}))
	assert.False(t, p.Contains(geo.Point{Lat: 5, Lon: 5}))
	assert.True(t, p.Contains(geo.Point{Lat: 0, Lon: 2}), "boundary is contained")

	assert.False(t, Shape{Kind: "ellipse"}.Contains(geo.Point{}))
}
