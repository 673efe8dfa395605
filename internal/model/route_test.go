package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/geo"
)

func corridorRoute() *Route {
	return &Route{
		ID:              uuid.New(),
		Name:            "Douala-Yaounde",
		StartLat:        0,
		StartLon:        0,
		EndLat:          0,
		EndLon:          1,
		ToleranceMeters: 500,
		Active:          true,
		Segments: []RouteSegment{
			{
				ID:    uuid.New(),
				Name:  "main leg",
				Order: 1,
				Type:  "MAIN",
				Path: []geo.Point{
					{Lat: 0, Lon: 0},
					{Lat: 0, Lon: 0.5},
					{Lat: 0, Lon: 1},
				},
				Active: true,
			},
		},
	}
}

func TestRouteToConfig(t *testing.T) {
	route := corridorRoute()
	cfg, err := route.ToConfig()
	require.NoError(t, err)

	assert.Equal(t, route.ID, cfg.ID)
	assert.Equal(t, 500.0, cfg.Tolerance)
	require.Len(t, cfg.Segments, 1)
	assert.Equal(t, detect.SegmentMain, cfg.Segments[0].Type)
	assert.True(t, cfg.Segments[0].Active)
}

func TestRouteToConfigUnknownSegmentType(t *testing.T) {
	route := corridorRoute()
	route.Segments[0].Type = "SCENIC"
	_, err := route.ToConfig()
	assert.Error(t, err)
}

func TestRouteToConfigShortPath(t *testing.T) {
	route := corridorRoute()
	route.Segments[0].Path = route.Segments[0].Path[:1]
	_, err := route.ToConfig()
	assert.Error(t, err)
}

func TestSegmentBeforeSaveComputesLength(t *testing.T) {
	seg := &RouteSegment{
		ID: uuid.New(),
		Path: []geo.Point{
			{Lat: 0, Lon: 0},
			{Lat: 0, Lon: 1},
		},
	}
	require.NoError(t, seg.BeforeSave(nil))
	// One degree of longitude at the equator is about 111.2 km.
	assert.InDelta(t, 111195, seg.LengthMeters, 200)
}

func TestSegmentBeforeSaveRejectsBadPath(t *testing.T) {
	seg := &RouteSegment{ID: uuid.New(), Path: []geo.Point{{Lat: 0, Lon: 0}}}
	assert.Error(t, seg.BeforeSave(nil))

	seg = &RouteSegment{
		ID:   uuid.New(),
		Path: []geo.Point{{Lat: 0, Lon: 0}, {Lat: 95, Lon: 0}},
	}
	assert.Error(t, seg.BeforeSave(nil))
}
