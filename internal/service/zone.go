package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/model"
)

const zoneCacheTTL = 1 * time.Hour

// ZoneService handles geofence zone business logic
type ZoneService struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewZoneService creates a new zone service
func NewZoneService(db *gorm.DB, redisClient *redis.Client) *ZoneService {
	return &ZoneService{
		db:    db,
		redis: redisClient,
	}
}

// Create creates a new zone after validating its geometry and schedule.
func (s *ZoneService) Create(ctx context.Context, zone *model.GeofenceZone) error {
	if zone.ID == uuid.Nil {
		zone.ID = uuid.New()
	}
	if _, err := zone.ToConfig(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(zone).Error; err != nil {
		return err
	}

	s.cacheZone(ctx, zone)
	return nil
}

// GetByID returns a zone by ID
func (s *ZoneService) GetByID(ctx context.Context, id uuid.UUID) (*model.GeofenceZone, error) {
	var zone model.GeofenceZone
	if err := s.db.WithContext(ctx).First(&zone, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &zone, nil
}

// List returns zones for a user with pagination
func (s *ZoneService) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.GeofenceZone, int64, error) {
	var zones []model.GeofenceZone
	var total int64

	offset := (page - 1) * pageSize
	q := s.db.WithContext(ctx).Model(&model.GeofenceZone{}).Where("user_id = ?", userID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&zones).Error; err != nil {
		return nil, 0, err
	}
	return zones, total, nil
}

// Update updates a zone
func (s *ZoneService) Update(ctx context.Context, zone *model.GeofenceZone) error {
	if _, err := zone.ToConfig(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Save(zone).Error; err != nil {
		return err
	}

	s.cacheZone(ctx, zone)
	return nil
}

// Delete deletes a zone and its vehicle assignments
func (s *ZoneService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM vehicle_zones WHERE geofence_zone_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.GeofenceZone{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	s.redis.Del(ctx, zoneCacheKey(id))
	return nil
}

// AssignVehicles binds vehicles to a zone
func (s *ZoneService) AssignVehicles(ctx context.Context, zoneID uuid.UUID, vehicleIDs []uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, vid := range vehicleIDs {
			err := tx.Exec(
				"INSERT INTO vehicle_zones (vehicle_id, geofence_zone_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
				vid, zoneID,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UnassignVehicles unbinds vehicles from a zone
func (s *ZoneService) UnassignVehicles(ctx context.Context, zoneID uuid.UUID, vehicleIDs []uuid.UUID) error {
	return s.db.WithContext(ctx).
		Exec("DELETE FROM vehicle_zones WHERE geofence_zone_id = ? AND vehicle_id IN ?", zoneID, vehicleIDs).Error
}

// ZonesForVehicle returns the engine configuration of every zone assigned to
// the vehicle. Zones with broken geometry are skipped with a warning so one
// bad row cannot stall detection for the rest.
func (s *ZoneService) ZonesForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]detect.Zone, error) {
	var rows []model.GeofenceZone
	err := s.db.WithContext(ctx).
		Joins("JOIN vehicle_zones ON vehicle_zones.geofence_zone_id = geofence_zones.id").
		Where("vehicle_zones.vehicle_id = ?", vehicleID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load zones for vehicle %s: %w", vehicleID, err)
	}

	zones := make([]detect.Zone, 0, len(rows))
	for i := range rows {
		cfg, err := rows[i].ToConfig()
		if err != nil {
			log.Warnf("[ZoneService] Skipping zone %s: %v", rows[i].ID, err)
			continue
		}
		zones = append(zones, cfg)
	}
	return zones, nil
}

func zoneCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("fleet:zone:%s", id)
}

// cacheZone caches the zone in Redis for quick lookup
func (s *ZoneService) cacheZone(ctx context.Context, zone *model.GeofenceZone) {
	data, err := json.Marshal(zone)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, zoneCacheKey(zone.ID), data, zoneCacheTTL).Err(); err != nil {
		log.Warnf("[ZoneService] Failed to cache zone %s: %v", zone.ID, err)
	}
}
