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

	"geofleet/api/internal/model"
)

const (
	alertCacheTTL     = 24 * time.Hour
	recentAlertsKey   = "fleet:alerts:recent"
	recentAlertsLimit = 99
)

// AlertService persists alerts and keeps a recent-alerts window in Redis
type AlertService struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewAlertService creates a new alert service
func NewAlertService(db *gorm.DB, redisClient *redis.Client) *AlertService {
	return &AlertService{
		db:    db,
		redis: redisClient,
	}
}

// Create stores an alert and pushes it onto the recent window.
func (s *AlertService) Create(ctx context.Context, alert *model.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.OccurredAt.IsZero() {
		alert.OccurredAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return err
	}

	s.cacheAlert(ctx, alert)
	return nil
}

// AlertFilter narrows List results. Zero values mean no constraint.
type AlertFilter struct {
	VehicleID  uuid.UUID
	ZoneID     uuid.UUID
	Type       string
	UnreadOnly bool
	From       time.Time
	To         time.Time
}

// List returns alerts matching the filter, newest first, with pagination
func (s *AlertService) List(ctx context.Context, filter AlertFilter, page, pageSize int) ([]model.Alert, int64, error) {
	var alerts []model.Alert
	var total int64

	q := s.db.WithContext(ctx).Model(&model.Alert{})
	if filter.VehicleID != uuid.Nil {
		q = q.Where("vehicle_id = ?", filter.VehicleID)
	}
	if filter.ZoneID != uuid.Nil {
		q = q.Where("zone_id = ?", filter.ZoneID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.UnreadOnly {
		q = q.Where("read = false")
	}
	if !filter.From.IsZero() {
		q = q.Where("occurred_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("occurred_at <= ?", filter.To)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := q.Offset(offset).Limit(pageSize).Order("occurred_at DESC").Find(&alerts).Error; err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// MarkRead flags alerts as read
func (s *AlertService) MarkRead(ctx context.Context, ids []uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id IN ?", ids).
		Update("read", true).Error
}

// Recent returns the cached recent-alerts window, newest first.
func (s *AlertService) Recent(ctx context.Context, limit int) ([]model.Alert, error) {
	if limit <= 0 || limit > recentAlertsLimit+1 {
		limit = recentAlertsLimit + 1
	}
	raws, err := s.redis.LRange(ctx, recentAlertsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	alerts := make([]model.Alert, 0, len(raws))
	for _, raw := range raws {
		var a model.Alert
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			continue
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

func (s *AlertService) cacheAlert(ctx context.Context, alert *model.Alert) {
	data, err := json.Marshal(alert)
	if err != nil {
		return
	}

	key := fmt.Sprintf("fleet:alert:vehicle:%s", alert.VehicleID)
	if err := s.redis.Set(ctx, key, data, alertCacheTTL).Err(); err != nil {
		log.Warnf("[AlertService] Failed to cache alert: %v", err)
	}

	s.redis.LPush(ctx, recentAlertsKey, data)
	s.redis.LTrim(ctx, recentAlertsKey, 0, recentAlertsLimit)
}
