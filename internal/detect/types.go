// Package detect implements the geofence and route event-detection engine.
// It is a pure computation layer: zone and route configuration, location
// history and alert persistence are supplied by collaborators through the
// interfaces in interfaces.go, and every evaluation is side-effect free until
// the resulting alerts are handed back to the caller.
package detect

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"geofleet/api/internal/geo"
)

// AlertType identifies the kind of event a detector produced.
type AlertType string

const (
	AlertZoneEnter             AlertType = "ZONE_ENTER"
	AlertZoneExit              AlertType = "ZONE_EXIT"
	AlertZoneTemporalViolation AlertType = "ZONE_TEMPORAL_VIOLATION"
	AlertZoneSpeedViolation    AlertType = "ZONE_SPEED_VIOLATION"
	AlertZoneDwellExceeded     AlertType = "ZONE_DWELL_TIME_EXCEEDED"
	AlertZoneDwellInsufficient AlertType = "ZONE_DWELL_TIME_INSUFFICIENT"
	AlertRouteDeviation        AlertType = "ROUTE_DEVIATION"
)

// Severity classifies an alert for display and webhook routing.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// DefaultSeverity maps an alert type to its severity.
func DefaultSeverity(t AlertType) Severity {
	switch t {
	case AlertZoneEnter, AlertZoneExit:
		return SeverityInfo
	case AlertRouteDeviation:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Fix is one timestamped vehicle position. Speed is km/h and optional.
type Fix struct {
	Point geo.Point
	Time  time.Time
	Speed *float64
}

// Zone is the decoded, validated configuration of a geofence zone.
type Zone struct {
	ID          uuid.UUID
	Title       string
	Shape       Shape
	Schedule    Schedule
	Conditional Conditional
}

// Conditional holds the speed and dwell-time rules of a zone. With Enabled
// false, or with no thresholds set, no violation can fire.
type Conditional struct {
	Enabled         bool
	MaxSpeed        *float64 // km/h
	MaxDwellMinutes *int
	MinDwellMinutes *int
}

// Route is the decoded configuration of an assigned route.
type Route struct {
	ID        uuid.UUID
	Name      string
	Start     geo.Point
	End       geo.Point
	Tolerance float64 // meters
	Schedule  Schedule
	Segments  []Segment
}

// SegmentType distinguishes the role of a route segment.
type SegmentType string

const (
	SegmentMain        SegmentType = "MAIN"
	SegmentAlternative SegmentType = "ALTERNATIVE"
	SegmentBypass      SegmentType = "BYPASS"
	SegmentEmergency   SegmentType = "EMERGENCY"
)

// Segment is one authorized polyline of a route.
type Segment struct {
	Name       string
	Order      int
	Path       []geo.Point
	Type       SegmentType
	Priority   int
	SpeedLimit *float64
	Active     bool
}

// Label names a segment for tracking output.
func (s Segment) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return "segment " + strconv.Itoa(s.Order)
}

// Event is one detected zone alert, created at most once per
// (vehicle, zone, location) triple.
type Event struct {
	Type         AlertType
	Severity     Severity
	VehicleID    uuid.UUID
	ZoneID       uuid.UUID
	ZoneTitle    string
	Fix          Fix
	Message      string
	Speed        *float64
	DwellMinutes *int
}

// DeviationAlert describes a single route deviation check that found the
// vehicle outside tolerance. It is a transient value, not persisted by the
// engine.
type DeviationAlert struct {
	VehicleID uuid.UUID         `json:"vehicle_id"`
	RouteID   uuid.UUID         `json:"route_id"`
	RouteName string            `json:"route_name"`
	Position  geo.Point         `json:"position"`
	Distance  float64           `json:"distance_meters"`
	Tolerance float64           `json:"tolerance_meters"`
	Severity  DeviationSeverity `json:"severity"`
	Time      time.Time         `json:"time"`
	Message   string            `json:"message"`
}

// TrackingStatus is a snapshot of a vehicle's relation to one route.
type TrackingStatus struct {
	VehicleID uuid.UUID `json:"vehicle_id"`
	RouteID   uuid.UUID `json:"route_id"`
	OnRoute   bool      `json:"on_route"`
	Progress  float64   `json:"progress"`        // percent of start->end straight-line distance, [0,100]
	Distance  float64   `json:"distance_meters"` // meters off route; 0 when on route
	Segment   string    `json:"segment"`         // current segment label, or OffRoute
	Time      time.Time `json:"time"`
}

// OffRoute is the sentinel segment label when no active segment is within
// tolerance.
const OffRoute = "off route"

// DeviationSeverity bands a deviation as a multiple of the route tolerance.
type DeviationSeverity string

const (
	DeviationNone     DeviationSeverity = "NONE"
	DeviationLow      DeviationSeverity = "LOW"      // <= 2x tolerance
	DeviationMedium   DeviationSeverity = "MEDIUM"   // <= 5x tolerance
	DeviationHigh     DeviationSeverity = "HIGH"     // <= 10x tolerance
	DeviationCritical DeviationSeverity = "CRITICAL" // beyond 10x
)

// ClassifyDeviation returns the severity band for a distance given the route
// tolerance. A distance exactly at a band edge takes the lower band
// (comparisons are inclusive).
func ClassifyDeviation(distance, tolerance float64) DeviationSeverity {
	switch {
	case distance <= tolerance:
		return DeviationNone
	case distance <= tolerance*2:
		return DeviationLow
	case distance <= tolerance*5:
		return DeviationMedium
	case distance <= tolerance*10:
		return DeviationHigh
	default:
		return DeviationCritical
	}
}
