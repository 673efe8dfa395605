package model

import (
	"time"

	"github.com/google/uuid"
)

// Alert is a persisted detection event.
type Alert struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Type      string     `json:"type" gorm:"size:40;not null;index"`
	Severity  string     `json:"severity" gorm:"size:20;not null"`
	VehicleID uuid.UUID  `json:"vehicle_id" gorm:"type:uuid;not null;index"`
	Vehicle   *Vehicle   `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
	ZoneID    *uuid.UUID `json:"zone_id,omitempty" gorm:"type:uuid;index"`
	RouteID   *uuid.UUID `json:"route_id,omitempty" gorm:"type:uuid;index"`

	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Message string  `json:"message" gorm:"type:text"`

	Speed        *float64 `json:"speed,omitempty"`
	DwellMinutes *int     `json:"dwell_minutes,omitempty"`
	// DistanceMeters is set on route deviation alerts.
	DistanceMeters *float64 `json:"distance_meters,omitempty"`

	Read       bool      `json:"read" gorm:"default:false;index"`
	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Alert) TableName() string {
	return "alerts"
}
