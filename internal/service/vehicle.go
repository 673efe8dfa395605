package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"geofleet/api/internal/model"
)

var ErrInvalidAPIKey = errors.New("invalid or expired API key")

// VehicleService handles vehicle business logic and device API keys
type VehicleService struct {
	db *gorm.DB
}

// NewVehicleService creates a new vehicle service
func NewVehicleService(db *gorm.DB) *VehicleService {
	return &VehicleService{db: db}
}

// Create creates a new vehicle
func (s *VehicleService) Create(ctx context.Context, vehicle *model.Vehicle) error {
	if vehicle.ID == uuid.Nil {
		vehicle.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(vehicle).Error
}

// GetByID returns a vehicle with its assigned zones and routes
func (s *VehicleService) GetByID(ctx context.Context, id uuid.UUID) (*model.Vehicle, error) {
	var vehicle model.Vehicle
	err := s.db.WithContext(ctx).
		Preload("Zones").
		Preload("Routes").
		First(&vehicle, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// List returns vehicles for a user with pagination
func (s *VehicleService) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.Vehicle, int64, error) {
	var vehicles []model.Vehicle
	var total int64

	offset := (page - 1) * pageSize
	q := s.db.WithContext(ctx).Model(&model.Vehicle{}).Where("user_id = ?", userID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&vehicles).Error; err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

// Update updates a vehicle
func (s *VehicleService) Update(ctx context.Context, vehicle *model.Vehicle) error {
	return s.db.WithContext(ctx).Save(vehicle).Error
}

// Delete soft-deletes a vehicle
func (s *VehicleService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&model.Vehicle{}, "id = ?", id).Error
}

// TrackedVehicleIDs returns every vehicle that has at least one route
// assigned. The route monitor polls exactly this set.
func (s *VehicleService) TrackedVehicleIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Raw("SELECT DISTINCT vehicle_id FROM vehicle_routes").
		Scan(&ids).Error
	return ids, err
}

// IssueAPIKey creates a device credential for a vehicle. The plaintext key is
// returned once; only its SHA-256 digest is stored.
func (s *VehicleService) IssueAPIKey(ctx context.Context, vehicleID uuid.UUID, expiresAt *time.Time) (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	plaintext := "vk_" + hex.EncodeToString(raw)

	key := model.VehicleAPIKey{
		ID:        uuid.New(),
		VehicleID: vehicleID,
		APIKey:    hashAPIKey(plaintext),
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&key).Error; err != nil {
		return "", err
	}
	return plaintext, nil
}

// VerifyAPIKey resolves a presented key to its vehicle, updating the
// last-used timestamp on success.
func (s *VehicleService) VerifyAPIKey(ctx context.Context, plaintext string) (uuid.UUID, error) {
	var key model.VehicleAPIKey
	err := s.db.WithContext(ctx).
		Where("api_key = ? AND is_active = true", hashAPIKey(plaintext)).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrInvalidAPIKey
		}
		return uuid.Nil, err
	}

	now := time.Now().UTC()
	if !key.Valid(now) {
		return uuid.Nil, ErrInvalidAPIKey
	}

	s.db.WithContext(ctx).
		Model(&model.VehicleAPIKey{}).
		Where("id = ?", key.ID).
		Update("last_used_at", now)

	return key.VehicleID, nil
}

// RevokeAPIKey deactivates a credential
func (s *VehicleService) RevokeAPIKey(ctx context.Context, keyID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&model.VehicleAPIKey{}).
		Where("id = ?", keyID).
		Update("is_active", false).Error
}

func hashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return fmt.Sprintf("%x", sum)
}
