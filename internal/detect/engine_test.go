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

// fakeSources implements ZoneSource, RouteSource and LocationHistory in
// memory for engine tests.
type fakeSources struct {
	zones   []Zone
	routes  []Route
	prev    *Fix
	latest  *Fix
	entries map[uuid.UUID]*Fix // per-zone open stay entry
}

func (f *fakeSources) ZonesForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]Zone, error) {
	return f.zones, nil
}

func (f *fakeSources) RoutesForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]Route, error) {
	return f.routes, nil
}

func (f *fakeSources) PreviousFix(ctx context.Context, vehicleID uuid.UUID, before time.Time) (*Fix, error) {
	return f.prev, nil
}

func (f *fakeSources) FirstContinuousEntry(ctx context.Context, vehicleID, zoneID uuid.UUID, before time.Time) (*Fix, error) {
	return f.entries[zoneID], nil
}

func (f *fakeSources) LatestFix(ctx context.Context, vehicleID uuid.UUID) (*Fix, error) {
	return f.latest, nil
}

var (
	testVehicle = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	testZoneID  = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
)

func alwaysOn() Schedule {
	return Schedule{TemporalEnabled: false, Active: true}
}

// depotZone is a 500 m circle at the origin of the test area.
func depotZone() Zone {
	return Zone{
		ID:       testZoneID,
		Title:    "depot",
		Shape:    circleShape(4.05, 9.7, 500),
		Schedule: alwaysOn(),
	}
}

func fixAt(lat, lon float64, ts time.Time) Fix {
	return Fix{Point: geo.Point{Lat: lat, Lon: lon}, Time: ts}
}

func newTestEngine(src *fakeSources) *Engine {
	return NewEngine(src, src, src)
}

func TestFirstObservationInsideEmitsEnter(t *testing.T) {
	src := &fakeSources{zones: []Zone{depotZone()}}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle,
		fixAt(4.05, 9.7, time.Now()))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AlertZoneEnter, events[0].Type)
	assert.Equal(t, testZoneID, events[0].ZoneID)
	assert.Equal(t, SeverityInfo, events[0].Severity)
}

func TestFirstObservationOutsideIsSilent(t *testing.T) {
	src := &fakeSources{zones: []Zone{depotZone()}}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle,
		fixAt(4.2, 9.9, time.Now()))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestTransitions(t *testing.T) {
	now := time.Now()
	inside := fixAt(4.05, 9.7, now)
	outside := fixAt(4.2, 9.9, now)
	prevInside := fixAt(4.0501, 9.7, now.Add(-time.Minute))
	prevOutside := fixAt(4.2, 9.9001, now.Add(-time.Minute))

	cases := []struct {
		name string
		prev Fix
		curr Fix
		want []AlertType
	}{
		{"outside to outside", prevOutside, outside, nil},
		{"outside to inside", prevOutside, inside, []AlertType{AlertZoneEnter}},
		{"inside to outside", prevInside, outside, []AlertType{AlertZoneExit}},
		{"inside to inside", prevInside, inside, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &fakeSources{zones: []Zone{depotZone()}, prev: &tc.prev}
			eng := newTestEngine(src)

			events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, tc.curr)
			require.NoError(t, err)
			require.Len(t, events, len(tc.want))
			for i, want := range tc.want {
				assert.Equal(t, want, events[i].Type)
			}
		})
	}
}

func TestEvaluationIsIdempotent(t *testing.T) {
	now := time.Now()
	prev := fixAt(4.2, 9.9, now.Add(-time.Minute))
	src := &fakeSources{zones: []Zone{depotZone()}, prev: &prev}
	eng := newTestEngine(src)

	curr := fixAt(4.05, 9.7, now)
	first, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, curr)
	require.NoError(t, err)
	second, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, curr)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTemporalViolationShortCircuits(t *testing.T) {
	zone := depotZone()
	zone.Schedule = Schedule{
		TemporalEnabled: true,
		Start:           tod(t, "08:00"),
		End:             tod(t, "18:00"),
		Days:            AllDays(),
		Active:          true,
	}
	// Inside the zone at 22:00, outside the window, and the previous fix was
	// outside the zone; no ENTER may fire.
	prev := fixAt(4.2, 9.9, at(time.Monday, "21:59"))
	src := &fakeSources{zones: []Zone{zone}, prev: &prev}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle,
		fixAt(4.05, 9.7, at(time.Monday, "22:00")))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AlertZoneTemporalViolation, events[0].Type)
	assert.Equal(t, SeverityWarning, events[0].Severity)
}

func TestInactiveZoneVehicleOutsideIsSilent(t *testing.T) {
	zone := depotZone()
	zone.Schedule = Schedule{TemporalEnabled: false, Active: false}
	src := &fakeSources{zones: []Zone{zone}}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle,
		fixAt(4.2, 9.9, time.Now()))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSpeedViolationFiresOnEveryInsideUpdate(t *testing.T) {
	limit := 60.0
	zone := depotZone()
	zone.Conditional = Conditional{Enabled: true, MaxSpeed: &limit}

	now := time.Now()
	prevInside := fixAt(4.0501, 9.7, now.Add(-time.Minute))
	src := &fakeSources{zones: []Zone{zone}, prev: &prevInside}
	eng := newTestEngine(src)

	speeding := 80.0
	curr := fixAt(4.05, 9.7, now)
	curr.Speed = &speeding

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, curr)
	require.NoError(t, err)
	require.Len(t, events, 1, "inside to inside produces no transition, only the violation")
	assert.Equal(t, AlertZoneSpeedViolation, events[0].Type)
	require.NotNil(t, events[0].Speed)
	assert.Equal(t, 80.0, *events[0].Speed)

	// Outside the zone the same speed is fine.
	src.prev = nil
	outside := fixAt(4.2, 9.9, now)
	outside.Speed = &speeding
	events, err = eng.EvaluateLocationUpdate(context.Background(), testVehicle, outside)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSpeedLimitWithoutSpeedReading(t *testing.T) {
	limit := 60.0
	zone := depotZone()
	zone.Conditional = Conditional{Enabled: true, MaxSpeed: &limit}
	src := &fakeSources{zones: []Zone{zone}}
	eng := newTestEngine(src)

	// First observation inside with no speed: only the ENTER fires.
	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle,
		fixAt(4.05, 9.7, time.Now()))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AlertZoneEnter, events[0].Type)
}

func TestConditionalEnabledWithoutThresholds(t *testing.T) {
	zone := depotZone()
	zone.Conditional = Conditional{Enabled: true}

	now := time.Now()
	prevInside := fixAt(4.0501, 9.7, now.Add(-time.Minute))
	src := &fakeSources{
		zones:   []Zone{zone},
		prev:    &prevInside,
		entries: map[uuid.UUID]*Fix{testZoneID: {Time: now.Add(-3 * time.Hour)}},
	}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, fixAt(4.05, 9.7, now))
	require.NoError(t, err)
	assert.Empty(t, events, "no thresholds set means no violation can fire")
}

func TestMaxDwellExceededWhileInside(t *testing.T) {
	maxDwell := 30
	zone := depotZone()
	zone.Conditional = Conditional{Enabled: true, MaxDwellMinutes: &maxDwell}

	now := time.Now()
	entry := fixAt(4.05, 9.7, now.Add(-45*time.Minute))
	prevInside := fixAt(4.0501, 9.7, now.Add(-time.Minute))
	src := &fakeSources{
		zones:   []Zone{zone},
		prev:    &prevInside,
		entries: map[uuid.UUID]*Fix{testZoneID: &entry},
	}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, fixAt(4.05, 9.7, now))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AlertZoneDwellExceeded, events[0].Type)
	require.NotNil(t, events[0].DwellMinutes)
	assert.Equal(t, 45, *events[0].DwellMinutes)
}

func TestMinDwellInsufficientOnExit(t *testing.T) {
	minDwell := 10
	zone := depotZone()
	zone.Conditional = Conditional{Enabled: true, MinDwellMinutes: &minDwell}

	now := time.Now()
	entry := fixAt(4.05, 9.7, now.Add(-5*time.Minute))
	prevInside := fixAt(4.0501, 9.7, now.Add(-time.Minute))
	src := &fakeSources{
		zones:   []Zone{zone},
		prev:    &prevInside,
		entries: map[uuid.UUID]*Fix{testZoneID: &entry},
	}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, fixAt(4.2, 9.9, now))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, AlertZoneExit, events[0].Type)
	assert.Equal(t, AlertZoneDwellInsufficient, events[1].Type)
	require.NotNil(t, events[1].DwellMinutes)
	assert.Equal(t, 5, *events[1].DwellMinutes)
}

func TestMinDwellSatisfiedOnExit(t *testing.T) {
	minDwell := 10
	zone := depotZone()
	zone.Conditional = Conditional{Enabled: true, MinDwellMinutes: &minDwell}

	now := time.Now()
	entry := fixAt(4.05, 9.7, now.Add(-25*time.Minute))
	prevInside := fixAt(4.0501, 9.7, now.Add(-time.Minute))
	src := &fakeSources{
		zones:   []Zone{zone},
		prev:    &prevInside,
		entries: map[uuid.UUID]*Fix{testZoneID: &entry},
	}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, fixAt(4.2, 9.9, now))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AlertZoneExit, events[0].Type)
}

func TestNoOpenStaySkipsDwellChecks(t *testing.T) {
	maxDwell := 1
	zone := depotZone()
	zone.Conditional = Conditional{Enabled: true, MaxDwellMinutes: &maxDwell}

	// Entering on this very update: no open stay yet, dwell is undefined.
	now := time.Now()
	prevOutside := fixAt(4.2, 9.9, now.Add(-time.Minute))
	src := &fakeSources{zones: []Zone{zone}, prev: &prevOutside}
	eng := newTestEngine(src)

	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, fixAt(4.05, 9.7, now))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, AlertZoneEnter, events[0].Type)
}

func TestMultipleZonesEvaluatedIndependently(t *testing.T) {
	other := depotZone()
	other.ID = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")
	other.Title = "warehouse"
	other.Shape = circleShape(4.2, 9.9, 500)

	now := time.Now()
	prev := fixAt(4.05, 9.7, now.Add(-time.Minute)) // inside depot, outside warehouse
	src := &fakeSources{zones: []Zone{depotZone(), other}, prev: &prev}
	eng := newTestEngine(src)

	// Move from depot to warehouse: one EXIT, one ENTER.
	events, err := eng.EvaluateLocationUpdate(context.Background(), testVehicle, fixAt(4.2, 9.9, now))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, AlertZoneExit, events[0].Type)
	assert.Equal(t, AlertZoneEnter, events[1].Type)
	assert.NotEqual(t, events[0].ZoneID, events[1].ZoneID)
}
