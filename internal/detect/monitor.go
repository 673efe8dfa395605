package detect

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultMonitorInterval is how often a Monitor re-evaluates a vehicle.
const DefaultMonitorInterval = 30 * time.Second

// Monitor periodically re-runs the route deviation check for a vehicle even
// when no fresh location arrives. It is a polling wrapper over
// CheckRouteDeviation; the detection itself stays synchronous and pure.
type Monitor struct {
	engine    *Engine
	positions PositionSource
	interval  time.Duration
}

// NewMonitor creates a monitor polling at the given interval, or
// DefaultMonitorInterval when interval is zero.
func NewMonitor(engine *Engine, positions PositionSource, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &Monitor{engine: engine, positions: positions, interval: interval}
}

// Watch streams deviation alerts for one vehicle until ctx is cancelled.
// Ticks without a known position, failed lookups and in-tolerance checks
// produce nothing; cancellation simply stops the polling, no in-flight work
// needs rollback.
func (m *Monitor) Watch(ctx context.Context, vehicleID uuid.UUID) <-chan DeviationAlert {
	out := make(chan DeviationAlert)

	go func() {
		defer close(out)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fix, err := m.positions.LatestFix(ctx, vehicleID)
				if err != nil || fix == nil {
					continue
				}
				alert, err := m.engine.CheckRouteDeviation(ctx, vehicleID, fix.Point)
				if err != nil || alert == nil {
					continue
				}
				select {
				case out <- *alert:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
