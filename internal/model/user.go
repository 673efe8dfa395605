package model

import (
	"time"

	"github.com/google/uuid"
)

// User owns zones, routes and vehicles. Authentication and role management
// live outside this service; the engine only needs the owner reference.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Username  string    `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Email     string    `json:"email" gorm:"size:255"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
