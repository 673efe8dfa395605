package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vehicle is a tracked unit. Zones and routes are shared references, not
// owned: deleting a vehicle leaves them in place.
type Vehicle struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Brand        string         `json:"brand" gorm:"size:50"`
	Model        string         `json:"model" gorm:"size:50"`
	LicensePlate string         `json:"license_plate" gorm:"size:20;not null;uniqueIndex"`
	ImageURL     string         `json:"image_url,omitempty" gorm:"size:255"`
	UserID       uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index"`
	User         *User          `json:"user,omitempty"`
	Zones        []GeofenceZone `json:"zones,omitempty" gorm:"many2many:vehicle_zones;"`
	Routes       []Route        `json:"routes,omitempty" gorm:"many2many:vehicle_routes;"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

// VehicleAPIKey authorizes a device to push locations for one vehicle.
// APIKey holds the SHA-256 hex digest of the issued "vk_"-prefixed plaintext,
// which is never stored.
type VehicleAPIKey struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	VehicleID  uuid.UUID  `json:"vehicle_id" gorm:"type:uuid;not null;index"`
	Vehicle    *Vehicle   `json:"vehicle,omitempty"`
	APIKey     string     `json:"api_key" gorm:"size:64;not null;uniqueIndex"`
	IsActive   bool       `json:"is_active" gorm:"not null;default:true"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (VehicleAPIKey) TableName() string {
	return "vehicle_api_keys"
}

// Valid reports whether the key is active and not expired.
func (k *VehicleAPIKey) Valid(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}
