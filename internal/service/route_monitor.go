package service

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"geofleet/api/internal/detect"
)

// RouteMonitor re-evaluates every vehicle with an assigned route against its
// last known position on a fixed interval. Vehicles without a recent fix are
// skipped until one arrives.
type RouteMonitor struct {
	engine    *detect.Engine
	vehicles  *VehicleService
	locations *LocationService
	checker   *Checker
	interval  time.Duration

	cancel context.CancelFunc
}

// NewRouteMonitor creates a new route monitor
func NewRouteMonitor(engine *detect.Engine, vehicles *VehicleService, locations *LocationService, checker *Checker, interval time.Duration) *RouteMonitor {
	if interval <= 0 {
		interval = detect.DefaultMonitorInterval
	}
	return &RouteMonitor{
		engine:    engine,
		vehicles:  vehicles,
		locations: locations,
		checker:   checker,
		interval:  interval,
	}
}

// Start launches the polling loop
func (m *RouteMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	go m.run(ctx)
	log.Printf("[RouteMonitor] Started (interval %s)", m.interval)
}

// Stop halts the polling loop
func (m *RouteMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	log.Println("[RouteMonitor] Stopped")
}

func (m *RouteMonitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep checks every tracked vehicle once.
func (m *RouteMonitor) sweep(ctx context.Context) {
	ids, err := m.vehicles.TrackedVehicleIDs(ctx)
	if err != nil {
		log.Errorf("[RouteMonitor] Failed to list tracked vehicles: %v", err)
		return
	}

	for _, id := range ids {
		fix, err := m.locations.LatestFix(ctx, id)
		if err != nil {
			log.Warnf("[RouteMonitor] Failed to load position for %s: %v", id, err)
			continue
		}
		if fix == nil {
			continue
		}

		deviation, err := m.engine.CheckRouteDeviation(ctx, id, fix.Point)
		if err != nil {
			log.Errorf("[RouteMonitor] Route check failed for %s: %v", id, err)
			continue
		}
		if deviation != nil {
			m.checker.handleDeviation(ctx, deviation)
		}
	}
}
