package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/model"
)

// RouteService handles route business logic
type RouteService struct {
	db *gorm.DB
}

// NewRouteService creates a new route service
func NewRouteService(db *gorm.DB) *RouteService {
	return &RouteService{db: db}
}

// Create creates a route with its segments in one transaction.
func (s *RouteService) Create(ctx context.Context, route *model.Route) error {
	if route.ID == uuid.Nil {
		route.ID = uuid.New()
	}
	for i := range route.Segments {
		if route.Segments[i].ID == uuid.Nil {
			route.Segments[i].ID = uuid.New()
		}
		route.Segments[i].RouteID = route.ID
	}
	if _, err := route.ToConfig(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(route).Error
}

// GetByID returns a route with its segments ordered by position.
func (s *RouteService) GetByID(ctx context.Context, id uuid.UUID) (*model.Route, error) {
	var route model.Route
	err := s.db.WithContext(ctx).
		Preload("Segments", func(db *gorm.DB) *gorm.DB {
			return db.Order("segment_order ASC")
		}).
		First(&route, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &route, nil
}

// List returns routes for a user with pagination
func (s *RouteService) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]model.Route, int64, error) {
	var routes []model.Route
	var total int64

	offset := (page - 1) * pageSize
	q := s.db.WithContext(ctx).Model(&model.Route{}).Where("user_id = ?", userID)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Offset(offset).Limit(pageSize).Order("created_at DESC").Find(&routes).Error; err != nil {
		return nil, 0, err
	}
	return routes, total, nil
}

// Update replaces a route and its segments.
func (s *RouteService) Update(ctx context.Context, route *model.Route) error {
	for i := range route.Segments {
		if route.Segments[i].ID == uuid.Nil {
			route.Segments[i].ID = uuid.New()
		}
		route.Segments[i].RouteID = route.ID
	}
	if _, err := route.ToConfig(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.RouteSegment{}, "route_id = ?", route.ID).Error; err != nil {
			return err
		}
		return tx.Save(route).Error
	})
}

// Delete deletes a route, its segments and vehicle assignments
func (s *RouteService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM vehicle_routes WHERE route_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&model.RouteSegment{}, "route_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Route{}, "id = ?", id).Error
	})
}

// AssignVehicles binds vehicles to a route
func (s *RouteService) AssignVehicles(ctx context.Context, routeID uuid.UUID, vehicleIDs []uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, vid := range vehicleIDs {
			err := tx.Exec(
				"INSERT INTO vehicle_routes (vehicle_id, route_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
				vid, routeID,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// UnassignVehicles unbinds vehicles from a route
func (s *RouteService) UnassignVehicles(ctx context.Context, routeID uuid.UUID, vehicleIDs []uuid.UUID) error {
	return s.db.WithContext(ctx).
		Exec("DELETE FROM vehicle_routes WHERE route_id = ? AND vehicle_id IN ?", routeID, vehicleIDs).Error
}

// RoutesForVehicle returns the engine configuration of every route assigned
// to the vehicle, segments included.
func (s *RouteService) RoutesForVehicle(ctx context.Context, vehicleID uuid.UUID) ([]detect.Route, error) {
	var rows []model.Route
	err := s.db.WithContext(ctx).
		Joins("JOIN vehicle_routes ON vehicle_routes.route_id = routes.id").
		Where("vehicle_routes.vehicle_id = ?", vehicleID).
		Preload("Segments", func(db *gorm.DB) *gorm.DB {
			return db.Order("segment_order ASC")
		}).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load routes for vehicle %s: %w", vehicleID, err)
	}

	routes := make([]detect.Route, 0, len(rows))
	for i := range rows {
		cfg, err := rows[i].ToConfig()
		if err != nil {
			log.Warnf("[RouteService] Skipping route %s: %v", rows[i].ID, err)
			continue
		}
		routes = append(routes, cfg)
	}
	return routes, nil
}
