package model

import (
	"time"

	"github.com/google/uuid"
)

// ZoneStay records one continuous presence of a vehicle inside a zone. A row
// is opened when an enter event fires and closed on the matching exit; at
// most one open stay exists per (vehicle, zone).
type ZoneStay struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	VehicleID uuid.UUID `json:"vehicle_id" gorm:"type:uuid;not null;index:idx_zone_stays_open,priority:1"`
	ZoneID    uuid.UUID `json:"zone_id" gorm:"type:uuid;not null;index:idx_zone_stays_open,priority:2"`

	EnteredAt time.Time  `json:"entered_at" gorm:"not null"`
	EntryLat  float64    `json:"entry_lat"`
	EntryLon  float64    `json:"entry_lon"`
	ExitedAt  *time.Time `json:"exited_at,omitempty" gorm:"index:idx_zone_stays_open,priority:3"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ZoneStay) TableName() string {
	return "zone_stays"
}

// Open reports whether the stay has not been closed yet.
func (s *ZoneStay) Open() bool {
	return s.ExitedAt == nil
}
