package model

import (
	"time"

	"github.com/google/uuid"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/geo"
)

// Location is one timestamped position report. The history per vehicle is
// append-only and time-ordered; rows are never updated.
type Location struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	VehicleID uuid.UUID `json:"vehicle_id" gorm:"type:uuid;not null;index:idx_locations_vehicle_time,priority:1"`
	Lat       float64   `json:"lat" gorm:"not null"`
	Lon       float64   `json:"lon" gorm:"not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index:idx_locations_vehicle_time,priority:2,sort:desc"`
	Speed     *float64  `json:"speed,omitempty"`   // km/h
	Heading   *float64  `json:"heading,omitempty"` // degrees
	Altitude  *float64  `json:"altitude,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters
	Source    string    `json:"source,omitempty" gorm:"size:50"`
	CreatedAt time.Time `json:"created_at"`
}

func (Location) TableName() string {
	return "locations"
}

// Fix converts the row to the engine's value type.
func (l *Location) Fix() detect.Fix {
	return detect.Fix{
		Point: geo.Point{Lat: l.Lat, Lon: l.Lon},
		Time:  l.Timestamp,
		Speed: l.Speed,
	}
}
