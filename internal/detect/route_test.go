package detect

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geofleet/api/internal/geo"
)

var testRouteID = uuid.MustParse("6ba7b813-9dad-11d1-80b4-00c04fd430c8")

// corridorRoute runs due east along the equator with a 111 m tolerance
// (0.001 degrees in the flat model), so deviation distances in tests are
// clean multiples of latitude offsets.
func corridorRoute() Route {
	return Route{
		ID:        testRouteID,
		Name:      "harbor corridor",
		Start:     geo.Point{Lat: 0, Lon: 0},
		End:       geo.Point{Lat: 0, Lon: 1},
		Tolerance: 111,
		Schedule:  alwaysOn(),
		Segments: []Segment{
			{
				Name:   "main",
				Order:  1,
				Type:   SegmentMain,
				Active: true,
				Path:   []geo.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.5}, {Lat: 0, Lon: 1}},
			},
		},
	}
}

func TestClassifyDeviation(t *testing.T) {
	tol := 100.0
	assert.Equal(t, DeviationNone, ClassifyDeviation(100, tol), "exactly at tolerance is NONE")
	assert.Equal(t, DeviationLow, ClassifyDeviation(150, tol))
	assert.Equal(t, DeviationLow, ClassifyDeviation(200, tol))
	assert.Equal(t, DeviationMedium, ClassifyDeviation(300, tol))
	assert.Equal(t, DeviationMedium, ClassifyDeviation(500, tol))
	assert.Equal(t, DeviationHigh, ClassifyDeviation(800, tol))
	assert.Equal(t, DeviationCritical, ClassifyDeviation(1500, tol))
}

func TestCheckRouteDeviationOnRoute(t *testing.T) {
	src := &fakeSources{routes: []Route{corridorRoute()}}
	eng := newTestEngine(src)

	// Within tolerance of the path: no alert. The boundary itself is
	// inclusive, covered by TestClassifyDeviation.
	alert, err := eng.CheckRouteDeviation(context.Background(), testVehicle, geo.Point{Lat: 0.0005, Lon: 0.5})
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestCheckRouteDeviationOffRoute(t *testing.T) {
	src := &fakeSources{routes: []Route{corridorRoute()}}
	eng := newTestEngine(src)

	// 3x tolerance off the path lands in the MEDIUM band.
	alert, err := eng.CheckRouteDeviation(context.Background(), testVehicle, geo.Point{Lat: 0.003, Lon: 0.5})
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, testRouteID, alert.RouteID)
	assert.Equal(t, DeviationMedium, alert.Severity)
	assert.InDelta(t, 333, alert.Distance, 1)
	assert.Equal(t, 111.0, alert.Tolerance)
}

func TestCheckRouteDeviationSkipsInactiveRoute(t *testing.T) {
	route := corridorRoute()
	route.Schedule = Schedule{
		TemporalEnabled: true,
		Days:            nil, // active on no day at all
		Active:          true,
	}
	src := &fakeSources{routes: []Route{route}}
	eng := newTestEngine(src)

	alert, err := eng.CheckRouteDeviation(context.Background(), testVehicle, geo.Point{Lat: 0.5, Lon: 0.5})
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestCheckRouteDeviationIgnoresInactiveSegments(t *testing.T) {
	route := corridorRoute()
	// A detour segment close to the vehicle, but disabled.
	route.Segments = append(route.Segments, Segment{
		Name:   "detour",
		Order:  2,
		Type:   SegmentAlternative,
		Active: false,
		Path:   []geo.Point{{Lat: 0.02, Lon: 0}, {Lat: 0.02, Lon: 1}},
	})
	src := &fakeSources{routes: []Route{route}}
	eng := newTestEngine(src)

	alert, err := eng.CheckRouteDeviation(context.Background(), testVehicle, geo.Point{Lat: 0.02, Lon: 0.5})
	require.NoError(t, err)
	require.NotNil(t, alert, "the disabled segment must not absorb the deviation")
	assert.Equal(t, DeviationCritical, alert.Severity)
}

func TestCheckRouteDeviationNoActiveSegments(t *testing.T) {
	route := corridorRoute()
	route.Segments[0].Active = false
	src := &fakeSources{routes: []Route{route}}
	eng := newTestEngine(src)

	alert, err := eng.CheckRouteDeviation(context.Background(), testVehicle, geo.Point{Lat: 0.5, Lon: 0.5})
	require.NoError(t, err)
	assert.Nil(t, alert, "no authorized path means nothing to deviate from")
}

func TestRouteProgress(t *testing.T) {
	route := corridorRoute()

	assert.InDelta(t, 0, RouteProgress(route, route.Start), 1e-9)
	assert.InDelta(t, 50, RouteProgress(route, geo.Point{Lat: 0, Lon: 0.5}), 0.1)
	assert.InDelta(t, 100, RouteProgress(route, route.End), 1e-9)

	// Past the end point, progress clamps to 100.
	assert.Equal(t, 100.0, RouteProgress(route, geo.Point{Lat: 0, Lon: 2}))

	// Degenerate route: start == end is complete by definition.
	route.End = route.Start
	assert.Equal(t, 100.0, RouteProgress(route, geo.Point{Lat: 0.5, Lon: 0.5}))
}

func TestCurrentSegment(t *testing.T) {
	route := corridorRoute()
	assert.Equal(t, "main", CurrentSegment(route, geo.Point{Lat: 0, Lon: 0.5}))
	assert.Equal(t, OffRoute, CurrentSegment(route, geo.Point{Lat: 0.5, Lon: 0.5}))

	route.Segments[0].Name = ""
	assert.Equal(t, "segment 1", CurrentSegment(route, geo.Point{Lat: 0, Lon: 0.5}))
}

func TestTrackingStatus(t *testing.T) {
	src := &fakeSources{}
	eng := newTestEngine(src)
	route := corridorRoute()

	on := eng.TrackingStatus(testVehicle, route, geo.Point{Lat: 0, Lon: 0.5})
	assert.True(t, on.OnRoute)
	assert.Equal(t, 0.0, on.Distance)
	assert.Equal(t, "main", on.Segment)
	assert.InDelta(t, 50, on.Progress, 0.1)
	assert.False(t, on.Time.IsZero())

	off := eng.TrackingStatus(testVehicle, route, geo.Point{Lat: 0.003, Lon: 0.5})
	assert.False(t, off.OnRoute)
	assert.InDelta(t, 333, off.Distance, 1)
	assert.Equal(t, OffRoute, off.Segment)
}

func TestMonitorWatch(t *testing.T) {
	route := corridorRoute()
	pos := Fix{Point: geo.Point{Lat: 0.003, Lon: 0.5}, Time: time.Now()}
	src := &fakeSources{routes: []Route{route}, latest: &pos}
	eng := newTestEngine(src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(eng, src, 10*time.Millisecond)
	alerts := m.Watch(ctx, testVehicle)

	select {
	case alert := <-alerts:
		assert.Equal(t, testRouteID, alert.RouteID)
		assert.Equal(t, DeviationMedium, alert.Severity)
	case <-time.After(time.Second):
		t.Fatal("expected a deviation alert from the monitor")
	}

	cancel()
	// The channel closes once the polling loop observes cancellation.
	for range alerts {
	}
}

func TestMonitorWatchToleratesMissingPosition(t *testing.T) {
	src := &fakeSources{routes: []Route{corridorRoute()}}
	eng := newTestEngine(src)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	m := NewMonitor(eng, src, 5*time.Millisecond)
	alerts := m.Watch(ctx, testVehicle)

	count := 0
	for range alerts {
		count++
	}
	assert.Zero(t, count, "no known position produces no alerts")
}
