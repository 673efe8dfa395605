package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geofleet/api/internal/detect"
	"geofleet/api/internal/middleware"
	"geofleet/api/internal/model"
	"geofleet/api/internal/service"
)

// RouteHandler handles route requests and live tracking views
type RouteHandler struct {
	routeService    *service.RouteService
	locationService *service.LocationService
	engine          *detect.Engine
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(routeService *service.RouteService, locationService *service.LocationService, engine *detect.Engine) *RouteHandler {
	return &RouteHandler{
		routeService:    routeService,
		locationService: locationService,
		engine:          engine,
	}
}

// Create creates a route with its segments
func (h *RouteHandler) Create(c *gin.Context) {
	var route model.Route
	if err := c.ShouldBindJSON(&route); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if userID, ok := middleware.UserID(c); ok {
		route.UserID = userID
	}

	if err := h.routeService.Create(c.Request.Context(), &route); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, route)
}

// List returns the user's routes
func (h *RouteHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	userID, _ := middleware.UserID(c)

	routes, total, err := h.routeService.List(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  routes,
		"total": total,
		"page":  page,
	})
}

// Get returns a single route with its segments
func (h *RouteHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	route, err := h.routeService.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}

	c.JSON(http.StatusOK, route)
}

// Update replaces a route and its segments
func (h *RouteHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var route model.Route
	if err := c.ShouldBindJSON(&route); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route.ID = id
	if err := h.routeService.Update(c.Request.Context(), &route); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, route)
}

// Delete deletes a route
func (h *RouteHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.routeService.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// AssignVehicles binds vehicles to a route
func (h *RouteHandler) AssignVehicles(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.routeService.AssignVehicles(c.Request.Context(), id, req.VehicleIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "vehicles assigned"})
}

// UnassignVehicles unbinds vehicles from a route
func (h *RouteHandler) UnassignVehicles(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.routeService.UnassignVehicles(c.Request.Context(), id, req.VehicleIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "vehicles unassigned"})
}

// TrackingStatus returns the vehicle's live relation to a route: on/off
// route, straight-line progress and the current segment.
func (h *RouteHandler) TrackingStatus(c *gin.Context) {
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid route id"})
		return
	}
	vehicleID, err := uuid.Parse(c.Param("vehicleID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle id"})
		return
	}

	route, err := h.routeService.GetByID(c.Request.Context(), routeID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
		return
	}
	cfg, err := route.ToConfig()
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	fix, err := h.locationService.LatestFix(c.Request.Context(), vehicleID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if fix == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no known position for vehicle"})
		return
	}

	c.JSON(http.StatusOK, h.engine.TrackingStatus(vehicleID, cfg, fix.Point))
}

// CheckDeviation runs an on-demand deviation check for a vehicle against all
// of its assigned routes.
func (h *RouteHandler) CheckDeviation(c *gin.Context) {
	vehicleID, err := uuid.Parse(c.Param("vehicleID"))
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
		c.JSON(http.StatusNotFound, gin.H{"error": "no known position for vehicle"})
		return
	}

	deviation, err := h.engine.CheckRouteDeviation(c.Request.Context(), vehicleID, fix.Point)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if deviation == nil {
		c.JSON(http.StatusOK, gin.H{"deviating": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deviating": true, "alert": deviation})
}
