package detect

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"geofleet/api/internal/geo"
)

// CheckRouteDeviation evaluates the vehicle's assigned routes against its
// current position and returns an alert for the first route, in assignment
// order, whose nearest active segment is farther away than the route's
// tolerance. It returns nil when no active route is violated. The check is
// stateless; continuous monitoring is a polling wrapper around it.
func (e *Engine) CheckRouteDeviation(ctx context.Context, vehicleID uuid.UUID, pos geo.Point) (*DeviationAlert, error) {
	routes, err := e.routes.RoutesForVehicle(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}

	now := e.now()
	for _, route := range routes {
		if !route.Schedule.ActiveAt(now) {
			continue
		}
		dist, ok := minDistanceToRoute(route, pos)
		if !ok {
			// A route with no active segments has no authorized path to
			// deviate from.
			continue
		}
		if dist > route.Tolerance {
			sev := ClassifyDeviation(dist, route.Tolerance)
			return &DeviationAlert{
				VehicleID: vehicleID,
				RouteID:   route.ID,
				RouteName: route.Name,
				Position:  pos,
				Distance:  dist,
				Tolerance: route.Tolerance,
				Severity:  sev,
				Time:      now,
				Message: fmt.Sprintf("vehicle %s is %.1f m off route %q (tolerance %.0f m, severity %s)",
					vehicleID, dist, route.Name, route.Tolerance, sev),
			}, nil
		}
	}
	return nil, nil
}

// TrackingStatus snapshots the vehicle's relation to one route: whether it is
// on the route, straight-line progress, distance off route and the current
// segment.
func (e *Engine) TrackingStatus(vehicleID uuid.UUID, route Route, pos geo.Point) TrackingStatus {
	dist, ok := minDistanceToRoute(route, pos)
	onRoute := ok && dist <= route.Tolerance

	status := TrackingStatus{
		VehicleID: vehicleID,
		RouteID:   route.ID,
		OnRoute:   onRoute,
		Progress:  RouteProgress(route, pos),
		Segment:   CurrentSegment(route, pos),
		Time:      e.now(),
	}
	if !onRoute && ok {
		status.Distance = dist
	}
	return status
}

// RouteProgress returns the percentage of the route covered as the ratio of
// start->position to start->end straight-line distance, clamped to [0,100].
// This is not a path-following measure and overstates progress on winding
// routes. A degenerate route with start == end is complete by definition.
func RouteProgress(route Route, pos geo.Point) float64 {
	total := geo.Haversine(route.Start, route.End)
	if total == 0 {
		return 100
	}
	return math.Min(100, geo.Haversine(route.Start, pos)/total*100)
}

// CurrentSegment returns the label of the first active segment whose path is
// within the route's tolerance of pos, or OffRoute.
func CurrentSegment(route Route, pos geo.Point) string {
	for _, seg := range route.Segments {
		if !seg.Active || len(seg.Path) == 0 {
			continue
		}
		if geo.DistanceToPolyline(pos, seg.Path) <= route.Tolerance {
			return seg.Label()
		}
	}
	return OffRoute
}

// minDistanceToRoute is the minimum distance in meters from pos to any active
// segment of the route. ok is false when the route has no active segment with
// a path.
func minDistanceToRoute(route Route, pos geo.Point) (float64, bool) {
	min, found := 0.0, false
	for _, seg := range route.Segments {
		if !seg.Active || len(seg.Path) == 0 {
			continue
		}
		d := geo.DistanceToPolyline(pos, seg.Path)
		if !found || d < min {
			min, found = d, true
		}
	}
	return min, found
}
