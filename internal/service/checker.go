package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/geo"
	"geofleet/api/internal/model"
)

const (
	uplinkSubject      = "fleet.uplink.LOCATION"
	alertSubjectPrefix = "fleet.alert."
)

// Checker consumes location updates from NATS, runs them through the
// detection engine and fans the resulting alerts out to Postgres, NATS and
// webhooks.
type Checker struct {
	db        *gorm.DB
	nats      *nats.Conn
	engine    *detect.Engine
	locations *LocationService
	alerts    *AlertService
	webhooks  *WebhookService

	ctx    context.Context
	cancel context.CancelFunc
	sub    *nats.Subscription
}

// LocationMessage represents a location update from NATS
type LocationMessage struct {
	VehicleID uuid.UUID `json:"vehicle_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp int64     `json:"timestamp"`
	Source    string    `json:"source,omitempty"`
}

// NewChecker creates a new checker
func NewChecker(db *gorm.DB, natsConn *nats.Conn, engine *detect.Engine, locations *LocationService, alerts *AlertService, webhooks *WebhookService) *Checker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Checker{
		db:        db,
		nats:      natsConn,
		engine:    engine,
		locations: locations,
		alerts:    alerts,
		webhooks:  webhooks,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to location updates
func (c *Checker) Start() error {
	log.Println("[Checker] Starting...")

	sub, err := c.nats.Subscribe(uplinkSubject, func(msg *nats.Msg) {
		var locMsg LocationMessage
		if err := json.Unmarshal(msg.Data, &locMsg); err != nil {
			log.Errorf("[Checker] Failed to unmarshal location message: %v", err)
			return
		}
		if err := c.Process(c.ctx, &locMsg); err != nil {
			log.Errorf("[Checker] Failed to process location update: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to NATS: %w", err)
	}
	c.sub = sub

	log.Println("[Checker] Subscribed to location updates")
	return nil
}

// Stop unsubscribes and cancels in-flight processing
func (c *Checker) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.cancel()
	log.Println("[Checker] Stopped")
}

// Process stores one location report and runs zone and route detection on it.
func (c *Checker) Process(ctx context.Context, locMsg *LocationMessage) error {
	fix := detect.Fix{
		Point: geo.Point{Lat: locMsg.Lat, Lon: locMsg.Lon},
		Time:  time.Unix(locMsg.Timestamp, 0).UTC(),
		Speed: locMsg.Speed,
	}

	loc := &model.Location{
		VehicleID: locMsg.VehicleID,
		Lat:       locMsg.Lat,
		Lon:       locMsg.Lon,
		Timestamp: fix.Time,
		Speed:     locMsg.Speed,
		Heading:   locMsg.Heading,
		Source:    locMsg.Source,
	}
	if err := c.locations.Append(ctx, loc); err != nil {
		return fmt.Errorf("failed to store location: %w", err)
	}

	events, err := c.engine.EvaluateLocationUpdate(ctx, locMsg.VehicleID, fix)
	if err != nil {
		return fmt.Errorf("zone evaluation: %w", err)
	}

	for i := range events {
		c.handleZoneEvent(ctx, &events[i])
	}

	deviation, err := c.engine.CheckRouteDeviation(ctx, locMsg.VehicleID, fix.Point)
	if err != nil {
		return fmt.Errorf("route evaluation: %w", err)
	}
	if deviation != nil {
		c.handleDeviation(ctx, deviation)
	}

	return nil
}

// handleZoneEvent maintains stay records and publishes the alert. The stay is
// closed after evaluation so the exit's min-dwell check still sees it open.
func (c *Checker) handleZoneEvent(ctx context.Context, ev *detect.Event) {
	switch ev.Type {
	case detect.AlertZoneEnter:
		if err := c.locations.OpenStay(ctx, ev.VehicleID, ev.ZoneID, ev.Fix); err != nil {
			log.Errorf("[Checker] Failed to open stay: %v", err)
		}
	case detect.AlertZoneExit:
		if err := c.locations.CloseStay(ctx, ev.VehicleID, ev.ZoneID, ev.Fix.Time); err != nil {
			log.Errorf("[Checker] Failed to close stay: %v", err)
		}
	}

	zoneID := ev.ZoneID
	alert := &model.Alert{
		Type:         string(ev.Type),
		Severity:     string(ev.Severity),
		VehicleID:    ev.VehicleID,
		ZoneID:       &zoneID,
		Lat:          ev.Fix.Point.Lat,
		Lon:          ev.Fix.Point.Lon,
		Message:      ev.Message,
		Speed:        ev.Speed,
		DwellMinutes: ev.DwellMinutes,
		OccurredAt:   ev.Fix.Time,
	}
	c.publishAlert(ctx, alert)

	log.Printf("[Checker] %s: vehicle %s, zone %q", ev.Type, ev.VehicleID, ev.ZoneTitle)
}

func (c *Checker) handleDeviation(ctx context.Context, dev *detect.DeviationAlert) {
	routeID := dev.RouteID
	distance := dev.Distance
	alert := &model.Alert{
		Type:           string(detect.AlertRouteDeviation),
		Severity:       string(detect.DefaultSeverity(detect.AlertRouteDeviation)),
		VehicleID:      dev.VehicleID,
		RouteID:        &routeID,
		Lat:            dev.Position.Lat,
		Lon:            dev.Position.Lon,
		Message:        dev.Message,
		DistanceMeters: &distance,
		OccurredAt:     dev.Time,
	}
	c.publishAlert(ctx, alert)

	log.Printf("[Checker] ROUTE_DEVIATION: vehicle %s, route %q, %.1f m off (%s)",
		dev.VehicleID, dev.RouteName, dev.Distance, dev.Severity)
}

// publishAlert persists the alert, pushes it to NATS and triggers webhooks.
func (c *Checker) publishAlert(ctx context.Context, alert *model.Alert) {
	if err := c.alerts.Create(ctx, alert); err != nil {
		log.Errorf("[Checker] Failed to store alert: %v", err)
		// Still publish so live consumers see the event.
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return
	}

	subject := alertSubjectPrefix + alert.Type
	if err := c.nats.Publish(subject, data); err != nil {
		log.Errorf("[Checker] Failed to publish alert: %v", err)
	}
	c.nats.Publish(fmt.Sprintf("%s.%s", subject, alert.VehicleID), data)

	if c.webhooks != nil {
		var vehicle model.Vehicle
		if err := c.db.WithContext(ctx).Select("user_id").First(&vehicle, "id = ?", alert.VehicleID).Error; err == nil {
			c.webhooks.Notify(ctx, vehicle.UserID, alert)
		}
	}
}
