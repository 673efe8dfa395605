package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/geo"
	"geofleet/api/internal/model"
)

const latestFixTTL = 24 * time.Hour

// LocationService persists location reports and serves the history views the
// detection engine needs. The latest fix per vehicle is shadowed in Redis so
// continuous route monitoring does not hit Postgres every tick.
type LocationService struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewLocationService creates a new location service
func NewLocationService(db *gorm.DB, redisClient *redis.Client) *LocationService {
	return &LocationService{
		db:    db,
		redis: redisClient,
	}
}

// Append stores a location report and refreshes the latest-fix cache. History
// rows are never updated in place.
func (s *LocationService) Append(ctx context.Context, loc *model.Location) error {
	if loc.ID == uuid.Nil {
		loc.ID = uuid.New()
	}
	if !(geo.Point{Lat: loc.Lat, Lon: loc.Lon}).Valid() {
		return fmt.Errorf("invalid coordinates (%f, %f)", loc.Lat, loc.Lon)
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(loc).Error; err != nil {
		return err
	}

	s.cacheLatest(ctx, loc)
	return nil
}

// History returns a vehicle's reports within [from, to], newest first.
func (s *LocationService) History(ctx context.Context, vehicleID uuid.UUID, from, to time.Time, limit int) ([]model.Location, error) {
	var rows []model.Location
	q := s.db.WithContext(ctx).
		Where("vehicle_id = ? AND timestamp >= ? AND timestamp <= ?", vehicleID, from, to).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// PreviousFix returns the most recent fix strictly before the given time, or
// nil on a vehicle's first report.
func (s *LocationService) PreviousFix(ctx context.Context, vehicleID uuid.UUID, before time.Time) (*detect.Fix, error) {
	var row model.Location
	err := s.db.WithContext(ctx).
		Where("vehicle_id = ? AND timestamp < ?", vehicleID, before).
		Order("timestamp DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	f := row.Fix()
	return &f, nil
}

// FirstContinuousEntry returns the fix that opened the vehicle's current stay
// inside the zone, or nil when no stay is open.
func (s *LocationService) FirstContinuousEntry(ctx context.Context, vehicleID, zoneID uuid.UUID, before time.Time) (*detect.Fix, error) {
	var stay model.ZoneStay
	err := s.db.WithContext(ctx).
		Where("vehicle_id = ? AND zone_id = ? AND exited_at IS NULL AND entered_at <= ?", vehicleID, zoneID, before).
		Order("entered_at DESC").
		First(&stay).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &detect.Fix{
		Point: geo.Point{Lat: stay.EntryLat, Lon: stay.EntryLon},
		Time:  stay.EnteredAt,
	}, nil
}

// OpenStay records the start of a continuous presence inside a zone.
func (s *LocationService) OpenStay(ctx context.Context, vehicleID, zoneID uuid.UUID, fix detect.Fix) error {
	stay := model.ZoneStay{
		ID:        uuid.New(),
		VehicleID: vehicleID,
		ZoneID:    zoneID,
		EnteredAt: fix.Time,
		EntryLat:  fix.Point.Lat,
		EntryLon:  fix.Point.Lon,
	}
	return s.db.WithContext(ctx).Create(&stay).Error
}

// CloseStay closes the open stay for (vehicle, zone), if any.
func (s *LocationService) CloseStay(ctx context.Context, vehicleID, zoneID uuid.UUID, exitedAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&model.ZoneStay{}).
		Where("vehicle_id = ? AND zone_id = ? AND exited_at IS NULL", vehicleID, zoneID).
		Update("exited_at", exitedAt).Error
}

// LatestFix returns the vehicle's most recent known position. The Redis
// shadow is tried first; on a miss the database answers.
func (s *LocationService) LatestFix(ctx context.Context, vehicleID uuid.UUID) (*detect.Fix, error) {
	data, err := s.redis.Get(ctx, latestFixKey(vehicleID)).Bytes()
	if err == nil {
		var row model.Location
		if err := json.Unmarshal(data, &row); err == nil {
			f := row.Fix()
			return &f, nil
		}
	}

	var row model.Location
	err = s.db.WithContext(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("timestamp DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	f := row.Fix()
	return &f, nil
}

func latestFixKey(vehicleID uuid.UUID) string {
	return fmt.Sprintf("fleet:location:latest:%s", vehicleID)
}

func (s *LocationService) cacheLatest(ctx context.Context, loc *model.Location) {
	data, err := json.Marshal(loc)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, latestFixKey(loc.VehicleID), data, latestFixTTL).Err(); err != nil {
		log.Warnf("[LocationService] Failed to cache latest fix for %s: %v", loc.VehicleID, err)
	}
}
