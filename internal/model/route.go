package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/geo"
)

// Route is a planned corridor between two points, made of ordered segments.
type Route struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"size:255;not null"`
	Description string    `json:"description"`

	StartLat float64 `json:"start_lat" gorm:"not null"`
	StartLon float64 `json:"start_lon" gorm:"not null"`
	EndLat   float64 `json:"end_lat" gorm:"not null"`
	EndLon   float64 `json:"end_lon" gorm:"not null"`

	// ToleranceMeters is the allowed lateral distance from any active
	// segment before a deviation is reported.
	ToleranceMeters float64 `json:"tolerance_meters" gorm:"not null;default:500"`

	Active bool `json:"active" gorm:"default:true"`

	TemporalEnabled bool     `json:"temporal_enabled" gorm:"default:false"`
	ActiveStartTime *string  `json:"active_start_time,omitempty" gorm:"size:5"`
	ActiveEndTime   *string  `json:"active_end_time,omitempty" gorm:"size:5"`
	ActiveDays      []string `json:"active_days,omitempty" gorm:"type:jsonb;serializer:json"`

	Segments []RouteSegment `json:"segments,omitempty" gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE"`

	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	User   *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Route) TableName() string {
	return "routes"
}

// RouteSegment is one polyline leg of a route. LengthMeters is derived from
// Path and recomputed on save.
type RouteSegment struct {
	ID      uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	RouteID uuid.UUID `json:"route_id" gorm:"type:uuid;not null;index"`

	Name     string `json:"name" gorm:"size:255"`
	Order    int    `json:"order" gorm:"column:segment_order;not null"`
	Type     string `json:"type" gorm:"size:20;not null;default:MAIN"`
	Priority int    `json:"priority" gorm:"default:0"`

	Path []geo.Point `json:"path" gorm:"type:jsonb;serializer:json;not null"`

	LengthMeters  float64  `json:"length_meters"`
	SpeedLimitKmh *float64 `json:"speed_limit_kmh,omitempty"`

	Active bool `json:"active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RouteSegment) TableName() string {
	return "route_segments"
}

// BeforeSave keeps the derived length in step with the path.
func (s *RouteSegment) BeforeSave(tx *gorm.DB) error {
	if len(s.Path) < 2 {
		return fmt.Errorf("segment %s: path needs at least two points", s.ID)
	}
	for _, p := range s.Path {
		if !p.Valid() {
			return fmt.Errorf("segment %s: invalid path point", s.ID)
		}
	}
	s.LengthMeters = geo.PolylineLength(s.Path)
	return nil
}

var segmentTypes = map[string]detect.SegmentType{
	"MAIN":        detect.SegmentMain,
	"ALTERNATIVE": detect.SegmentAlternative,
	"BYPASS":      detect.SegmentBypass,
	"EMERGENCY":   detect.SegmentEmergency,
}

// Schedule builds the engine activation window for the route.
func (r *Route) Schedule() (detect.Schedule, error) {
	days, err := ParseWeekdays(r.ActiveDays)
	if err != nil {
		return detect.Schedule{}, fmt.Errorf("route %s: %w", r.ID, err)
	}
	s := detect.Schedule{
		TemporalEnabled: r.TemporalEnabled,
		Days:            days,
		Active:          r.Active,
	}
	if r.ActiveStartTime != nil {
		t, err := detect.ParseTimeOfDay(*r.ActiveStartTime)
		if err != nil {
			return detect.Schedule{}, fmt.Errorf("route %s: start time: %w", r.ID, err)
		}
		s.Start = &t
	}
	if r.ActiveEndTime != nil {
		t, err := detect.ParseTimeOfDay(*r.ActiveEndTime)
		if err != nil {
			return detect.Schedule{}, fmt.Errorf("route %s: end time: %w", r.ID, err)
		}
		s.End = &t
	}
	return s, nil
}

// ToConfig converts the stored route and its segments to the engine's form.
func (r *Route) ToConfig() (detect.Route, error) {
	schedule, err := r.Schedule()
	if err != nil {
		return detect.Route{}, err
	}
	segs := make([]detect.Segment, 0, len(r.Segments))
	for i := range r.Segments {
		s := &r.Segments[i]
		kind, ok := segmentTypes[s.Type]
		if !ok {
			return detect.Route{}, fmt.Errorf("route %s: segment %s: unknown type %q", r.ID, s.ID, s.Type)
		}
		if len(s.Path) < 2 {
			return detect.Route{}, fmt.Errorf("route %s: segment %s: path needs at least two points", r.ID, s.ID)
		}
		segs = append(segs, detect.Segment{
			Name:       s.Name,
			Order:      s.Order,
			Path:       s.Path,
			Type:       kind,
			Priority:   s.Priority,
			SpeedLimit: s.SpeedLimitKmh,
			Active:     s.Active,
		})
	}
	return detect.Route{
		ID:        r.ID,
		Name:      r.Name,
		Start:     geo.Point{Lat: r.StartLat, Lon: r.StartLon},
		End:       geo.Point{Lat: r.EndLat, Lon: r.EndLon},
		Tolerance: r.ToleranceMeters,
		Schedule:  schedule,
		Segments:  segs,
	}, nil
}
