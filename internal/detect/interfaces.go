package detect

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ZoneSource supplies the zones assigned to a vehicle. Configuration is
// read-only during an evaluation; changes take effect on the next update.
type ZoneSource interface {
	ZonesForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]Zone, error)
}

// RouteSource supplies the routes assigned to a vehicle.
type RouteSource interface {
	RoutesForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]Route, error)
}

// LocationHistory reads a vehicle's location history.
//
// PreviousFix returns the most recent fix strictly before the given time, or
// nil on a vehicle's first-ever report.
//
// FirstContinuousEntry returns the fix at which the vehicle's current
// continuous stay inside the zone began, or nil when the vehicle has no open
// stay. Implementations record the entry when a ZONE_ENTER fires rather than
// re-deriving it from history, so dwell time is not overcounted across
// repeated visits.
type LocationHistory interface {
	PreviousFix(ctx context.Context, vehicleID uuid.UUID, before time.Time) (*Fix, error)
	FirstContinuousEntry(ctx context.Context, vehicleID, zoneID uuid.UUID, before time.Time) (*Fix, error)
}

// PositionSource supplies the latest known position of a vehicle, which may
// be stale; continuous monitoring tolerates the absence of a fresh report.
type PositionSource interface {
	LatestFix(ctx context.Context, vehicleID uuid.UUID) (*Fix, error)
}
