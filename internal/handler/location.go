package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"geofleet/api/internal/middleware"
	"geofleet/api/internal/service"
)

// LocationHandler handles device location ingest and history queries.
// Accepted reports are published to NATS; the checker consumes them, so HTTP
// ingest and any other uplink share one processing path.
type LocationHandler struct {
	locationService *service.LocationService
	nats            *nats.Conn
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(locationService *service.LocationService, natsConn *nats.Conn) *LocationHandler {
	return &LocationHandler{
		locationService: locationService,
		nats:            natsConn,
	}
}

type locationReport struct {
	Lat       float64  `json:"lat" binding:"required"`
	Lon       float64  `json:"lon" binding:"required"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}

// Ingest accepts a location report from an authenticated device
func (h *LocationHandler) Ingest(c *gin.Context) {
	vehicleID, ok := middleware.VehicleID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var report locationReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts := time.Now().Unix()
	if report.Timestamp != nil {
		ts = *report.Timestamp
	}

	msg := service.LocationMessage{
		VehicleID: vehicleID,
		Lat:       report.Lat,
		Lon:       report.Lon,
		Speed:     report.Speed,
		Heading:   report.Heading,
		Timestamp: ts,
		Source:    "http",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.nats.Publish("fleet.uplink.LOCATION", data); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue location"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// History returns a vehicle's reports within a time range, newest first
func (h *LocationHandler) History(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle id"})
		return
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if raw := c.Query("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = t
		}
	}
	if raw := c.Query("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = t
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))

	locations, err := h.locationService.History(c.Request.Context(), vehicleID, from, to, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": locations, "count": len(locations)})
}

// Latest returns a vehicle's last known position
func (h *LocationHandler) Latest(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle id"})
		return
	}

	fix, err := h.locationService.LatestFix(c.Request.Context(), vehicleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if fix == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no known position"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"lat":       fix.Point.Lat,
		"lon":       fix.Point.Lon,
		"timestamp": fix.Time,
		"speed":     fix.Speed,
	})
}
