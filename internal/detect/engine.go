package detect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine runs the zone and route detection pipelines. Evaluations for the
// same vehicle are serialized, because transition detection reads the
// immediately preceding location for that vehicle; evaluations for different
// vehicles run in parallel.
type Engine struct {
	zones   ZoneSource
	routes  RouteSource
	history LocationHistory
	now     func() time.Time

	mu           sync.Mutex
	vehicleLocks map[uuid.UUID]*sync.Mutex
}

// NewEngine creates an engine over the given collaborators.
func NewEngine(zones ZoneSource, routes RouteSource, history LocationHistory) *Engine {
	return &Engine{
		zones:        zones,
		routes:       routes,
		history:      history,
		now:          time.Now,
		vehicleLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (e *Engine) vehicleLock(id uuid.UUID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.vehicleLocks[id]
	if !ok {
		l = &sync.Mutex{}
		e.vehicleLocks[id] = l
	}
	return l
}

// EvaluateLocationUpdate runs the zone pipeline (activation, containment,
// transition, conditional violations) for every zone assigned to the vehicle
// and returns the alerts it produced. The evaluation is a pure function of
// the zone configuration, the previous fix and curr: re-running it with the
// same inputs yields the same alerts.
//
// The caller appends curr to the vehicle's history before or after this call
// under the same per-vehicle serialization; PreviousFix is queried strictly
// before curr.Time so ordering between the two does not matter.
func (e *Engine) EvaluateLocationUpdate(ctx context.Context, vehicleID uuid.UUID, curr Fix) ([]Event, error) {
	lock := e.vehicleLock(vehicleID)
	lock.Lock()
	defer lock.Unlock()

	zones, err := e.zones.ZonesForVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("load zones: %w", err)
	}
	if len(zones) == 0 {
		return nil, nil
	}

	prev, err := e.history.PreviousFix(ctx, vehicleID, curr.Time)
	if err != nil {
		return nil, fmt.Errorf("load previous fix: %w", err)
	}

	var events []Event
	for _, zone := range zones {
		zoneEvents, err := e.evaluateZone(ctx, vehicleID, zone, prev, curr)
		if err != nil {
			return nil, err
		}
		events = append(events, zoneEvents...)
	}
	return events, nil
}

// evaluateZone applies the detection rules of a single zone to one update.
// It emits at most one ENTER/EXIT/TEMPORAL_VIOLATION event plus any
// conditional violations.
func (e *Engine) evaluateZone(ctx context.Context, vehicleID uuid.UUID, zone Zone, prev *Fix, curr Fix) ([]Event, error) {
	var events []Event

	// An inactive zone emits a temporal violation when the vehicle is
	// physically present, and nothing else.
	if !zone.Schedule.ActiveAt(curr.Time) {
		if zone.Shape.Contains(curr.Point) {
			events = append(events, e.zoneEvent(AlertZoneTemporalViolation, vehicleID, zone, curr,
				fmt.Sprintf("vehicle %s is inside zone %q outside its active window", vehicleID, zone.Title)))
		}
		return events, nil
	}

	isInside := zone.Shape.Contains(curr.Point)

	if prev == nil {
		// First-ever report: an exit is impossible.
		if isInside {
			events = append(events, e.zoneEvent(AlertZoneEnter, vehicleID, zone, curr,
				fmt.Sprintf("vehicle %s entered zone %q", vehicleID, zone.Title)))
		}
	} else {
		wasInside := zone.Shape.Contains(prev.Point)
		switch {
		case !wasInside && isInside:
			events = append(events, e.zoneEvent(AlertZoneEnter, vehicleID, zone, curr,
				fmt.Sprintf("vehicle %s entered zone %q", vehicleID, zone.Title)))
		case wasInside && !isInside:
			events = append(events, e.zoneEvent(AlertZoneExit, vehicleID, zone, curr,
				fmt.Sprintf("vehicle %s exited zone %q", vehicleID, zone.Title)))
			exitEvents, err := e.checkMinDwell(ctx, vehicleID, zone, curr)
			if err != nil {
				return nil, err
			}
			events = append(events, exitEvents...)
		}
	}

	if isInside {
		insideEvents, err := e.checkConditional(ctx, vehicleID, zone, curr)
		if err != nil {
			return nil, err
		}
		events = append(events, insideEvents...)
	}

	return events, nil
}

// checkConditional evaluates the speed and max-dwell rules on an update
// inside the zone. Speed is checked on every update, so a sustained
// violation fires once per report.
func (e *Engine) checkConditional(ctx context.Context, vehicleID uuid.UUID, zone Zone, curr Fix) ([]Event, error) {
	if !zone.Conditional.Enabled {
		return nil, nil
	}

	var events []Event

	if zone.Conditional.MaxSpeed != nil && curr.Speed != nil && *curr.Speed > *zone.Conditional.MaxSpeed {
		ev := e.zoneEvent(AlertZoneSpeedViolation, vehicleID, zone, curr,
			fmt.Sprintf("vehicle %s over speed limit in zone %q (%.1f km/h > %.1f km/h)",
				vehicleID, zone.Title, *curr.Speed, *zone.Conditional.MaxSpeed))
		ev.Speed = curr.Speed
		events = append(events, ev)
	}

	if zone.Conditional.MaxDwellMinutes != nil {
		dwell, ok, err := e.dwellMinutes(ctx, vehicleID, zone.ID, curr)
		if err != nil {
			return nil, err
		}
		if ok && dwell > *zone.Conditional.MaxDwellMinutes {
			ev := e.zoneEvent(AlertZoneDwellExceeded, vehicleID, zone, curr,
				fmt.Sprintf("vehicle %s exceeded max dwell time in zone %q (%d min > %d min)",
					vehicleID, zone.Title, dwell, *zone.Conditional.MaxDwellMinutes))
			ev.DwellMinutes = &dwell
			events = append(events, ev)
		}
	}

	return events, nil
}

// checkMinDwell runs on exit: leaving before the minimum stay elapsed is a
// violation.
func (e *Engine) checkMinDwell(ctx context.Context, vehicleID uuid.UUID, zone Zone, curr Fix) ([]Event, error) {
	if !zone.Conditional.Enabled || zone.Conditional.MinDwellMinutes == nil {
		return nil, nil
	}

	dwell, ok, err := e.dwellMinutes(ctx, vehicleID, zone.ID, curr)
	if err != nil || !ok {
		return nil, err
	}
	if dwell < *zone.Conditional.MinDwellMinutes {
		ev := e.zoneEvent(AlertZoneDwellInsufficient, vehicleID, zone, curr,
			fmt.Sprintf("vehicle %s left zone %q before minimum dwell time (%d min < %d min)",
				vehicleID, zone.Title, dwell, *zone.Conditional.MinDwellMinutes))
		ev.DwellMinutes = &dwell
		return []Event{ev}, nil
	}
	return nil, nil
}

// dwellMinutes returns the whole minutes since the current continuous stay
// began. ok is false when no stay is open (the vehicle entered on this very
// update, or tracking started inside the zone).
func (e *Engine) dwellMinutes(ctx context.Context, vehicleID, zoneID uuid.UUID, curr Fix) (int, bool, error) {
	entry, err := e.history.FirstContinuousEntry(ctx, vehicleID, zoneID, curr.Time)
	if err != nil {
		return 0, false, fmt.Errorf("load continuous entry: %w", err)
	}
	if entry == nil {
		return 0, false, nil
	}
	return int(curr.Time.Sub(entry.Time).Minutes()), true, nil
}

func (e *Engine) zoneEvent(t AlertType, vehicleID uuid.UUID, zone Zone, fix Fix, msg string) Event {
	return Event{
		Type:      t,
		Severity:  DefaultSeverity(t),
		VehicleID: vehicleID,
		ZoneID:    zone.ID,
		ZoneTitle: zone.Title,
		Fix:       fix,
		Message:   msg,
	}
}
