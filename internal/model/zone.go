package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/geo"
)

const (
	ZoneTypeCircle  = "circle"
	ZoneTypePolygon = "polygon"
)

// CircleGeometry is the stored shape of a circular zone.
type CircleGeometry struct {
	Center geo.Point `json:"center"`
	Radius float64   `json:"radius"` // meters
}

// PolygonGeometry is the stored shape of a polygonal zone. Rings are closed
// (first point repeated last); holes are optional.
type PolygonGeometry struct {
	Exterior []geo.Point   `json:"exterior"`
	Holes    [][]geo.Point `json:"holes,omitempty"`
}

// GeofenceZone is a monitored area. Exactly one of Circle/Polygon is set,
// selected by Type. Temporal columns gate when the zone is considered
// active; conditional columns add per-zone rule thresholds.
type GeofenceZone struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description"`
	Type        string    `json:"type" gorm:"size:20;not null"`

	Circle  *CircleGeometry  `json:"circle,omitempty" gorm:"type:jsonb;serializer:json"`
	Polygon *PolygonGeometry `json:"polygon,omitempty" gorm:"type:jsonb;serializer:json"`

	Active bool `json:"active" gorm:"default:true"`

	// Temporal activation. When enabled, Active is ignored whenever both
	// window edges are set.
	TemporalEnabled bool     `json:"temporal_enabled" gorm:"default:false"`
	ActiveStartTime *string  `json:"active_start_time,omitempty" gorm:"size:5"` // "HH:MM"
	ActiveEndTime   *string  `json:"active_end_time,omitempty" gorm:"size:5"`
	ActiveDays      []string `json:"active_days,omitempty" gorm:"type:jsonb;serializer:json"`

	// Conditional rules, evaluated only while a vehicle is inside.
	ConditionalEnabled bool     `json:"conditional_enabled" gorm:"default:false"`
	MaxSpeed           *float64 `json:"max_speed,omitempty"`         // km/h
	MaxDwellMinutes    *int     `json:"max_dwell_minutes,omitempty"` // whole minutes
	MinDwellMinutes    *int     `json:"min_dwell_minutes,omitempty"`

	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	User   *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (GeofenceZone) TableName() string {
	return "geofence_zones"
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// ParseWeekdays maps stored day names to weekdays. An empty list means
// every day.
func ParseWeekdays(names []string) ([]time.Weekday, error) {
	if len(names) == 0 {
		return detect.AllDays(), nil
	}
	days := make([]time.Weekday, 0, len(names))
	for _, n := range names {
		d, ok := weekdayNames[n]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", n)
		}
		days = append(days, d)
	}
	return days, nil
}

// Shape builds the engine geometry for the zone.
func (z *GeofenceZone) Shape() (detect.Shape, error) {
	switch z.Type {
	case ZoneTypeCircle:
		if z.Circle == nil {
			return detect.Shape{}, fmt.Errorf("zone %s: circle geometry missing", z.ID)
		}
		return detect.Shape{
			Kind: detect.ShapeCircle,
			Circle: detect.Circle{
				Center: z.Circle.Center,
				Radius: z.Circle.Radius,
			},
		}, nil
	case ZoneTypePolygon:
		if z.Polygon == nil {
			return detect.Shape{}, fmt.Errorf("zone %s: polygon geometry missing", z.ID)
		}
		return detect.Shape{
			Kind: detect.ShapePolygon,
			Polygon: detect.Polygon{
				Exterior: z.Polygon.Exterior,
				Holes:    z.Polygon.Holes,
			},
		}, nil
	default:
		return detect.Shape{}, fmt.Errorf("zone %s: unknown type %q", z.ID, z.Type)
	}
}

// Schedule builds the engine activation window for the zone.
func (z *GeofenceZone) Schedule() (detect.Schedule, error) {
	days, err := ParseWeekdays(z.ActiveDays)
	if err != nil {
		return detect.Schedule{}, fmt.Errorf("zone %s: %w", z.ID, err)
	}
	s := detect.Schedule{
		TemporalEnabled: z.TemporalEnabled,
		Days:            days,
		Active:          z.Active,
	}
	if z.ActiveStartTime != nil {
		t, err := detect.ParseTimeOfDay(*z.ActiveStartTime)
		if err != nil {
			return detect.Schedule{}, fmt.Errorf("zone %s: start time: %w", z.ID, err)
		}
		s.Start = &t
	}
	if z.ActiveEndTime != nil {
		t, err := detect.ParseTimeOfDay(*z.ActiveEndTime)
		if err != nil {
			return detect.Schedule{}, fmt.Errorf("zone %s: end time: %w", z.ID, err)
		}
		s.End = &t
	}
	return s, nil
}

// ToConfig converts the stored zone to the engine's form, validating the
// geometry on the way.
func (z *GeofenceZone) ToConfig() (detect.Zone, error) {
	shape, err := z.Shape()
	if err != nil {
		return detect.Zone{}, err
	}
	if err := shape.Validate(); err != nil {
		return detect.Zone{}, fmt.Errorf("zone %s: %w", z.ID, err)
	}
	schedule, err := z.Schedule()
	if err != nil {
		return detect.Zone{}, err
	}
	return detect.Zone{
		ID:       z.ID,
		Title:    z.Title,
		Shape:    shape,
		Schedule: schedule,
		Conditional: detect.Conditional{
			Enabled:         z.ConditionalEnabled,
			MaxSpeed:        z.MaxSpeed,
			MaxDwellMinutes: z.MaxDwellMinutes,
			MinDwellMinutes: z.MinDwellMinutes,
		},
	}, nil
}
