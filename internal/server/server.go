package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"geofleet/api/internal/config"
	"geofleet/api/internal/detect"
	"geofleet/api/internal/handler"
	"geofleet/api/internal/middleware"
	"geofleet/api/internal/service"
)

// Server wires the detection pipeline, background workers and HTTP API
type Server struct {
	router *gin.Engine
	config *config.Config
	db     *gorm.DB
	redis  *redis.Client
	nats   *nats.Conn

	wsHub        *handler.WSHub
	checker      *service.Checker
	routeMonitor *service.RouteMonitor
	httpServer   *http.Server
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) *Server {
	return &Server{
		config: cfg,
		db:     db,
		redis:  redisClient,
		nats:   natsConn,
	}
}

// Setup initializes services, handlers and routes
func (s *Server) Setup() {
	s.wsHub = handler.NewWSHub(s.nats)
	wsHandler := handler.NewWSHandler(s.wsHub)

	zoneService := service.NewZoneService(s.db, s.redis)
	routeService := service.NewRouteService(s.db)
	locationService := service.NewLocationService(s.db, s.redis)
	vehicleService := service.NewVehicleService(s.db)
	alertService := service.NewAlertService(s.db, s.redis)
	webhookService := service.NewWebhookService(s.db, s.config.WebhookTimeout)

	engine := detect.NewEngine(zoneService, routeService, locationService)
	s.checker = service.NewChecker(s.db, s.nats, engine, locationService, alertService, webhookService)
	s.routeMonitor = service.NewRouteMonitor(engine, vehicleService, locationService, s.checker, s.config.RouteCheckInterval)

	zoneHandler := handler.NewZoneHandler(zoneService)
	routeHandler := handler.NewRouteHandler(routeService, locationService, engine)
	locationHandler := handler.NewLocationHandler(locationService, s.nats)
	vehicleHandler := handler.NewVehicleHandler(vehicleService)
	alertHandler := handler.NewAlertHandler(alertService)
	webhookHandler := handler.NewWebhookHandler(webhookService)

	go s.wsHub.Run()
	log.Println("[Server] WebSocket hub started")

	s.router = gin.Default()

	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, X-User-ID, X-API-Key")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.GET("/ws/events", wsHandler.HandleStream)
	s.router.GET("/ws/stats", wsHandler.Stats)

	// Device-facing ingest, authenticated by API key.
	ingest := s.router.Group("/api/v1")
	ingest.Use(middleware.DeviceKey(vehicleService))
	{
		ingest.POST("/locations", locationHandler.Ingest)
	}

	// Management API, authenticated by user identity.
	api := s.router.Group("/api/v1")
	api.Use(middleware.Identity())
	{
		api.POST("/vehicles", vehicleHandler.Create)
		api.GET("/vehicles", vehicleHandler.List)
		api.GET("/vehicles/:id", vehicleHandler.Get)
		api.PUT("/vehicles/:id", vehicleHandler.Update)
		api.DELETE("/vehicles/:id", vehicleHandler.Delete)
		api.POST("/vehicles/:id/api-keys", vehicleHandler.IssueAPIKey)
		api.DELETE("/api-keys/:keyID", vehicleHandler.RevokeAPIKey)
		api.GET("/vehicles/:id/locations", locationHandler.History)
		api.GET("/vehicles/:id/locations/latest", locationHandler.Latest)

		api.POST("/zones", zoneHandler.Create)
		api.GET("/zones", zoneHandler.List)
		api.GET("/zones/:id", zoneHandler.Get)
		api.PUT("/zones/:id", zoneHandler.Update)
		api.DELETE("/zones/:id", zoneHandler.Delete)
		api.POST("/zones/:id/vehicles", zoneHandler.AssignVehicles)
		api.DELETE("/zones/:id/vehicles", zoneHandler.UnassignVehicles)

		api.POST("/routes", routeHandler.Create)
		api.GET("/routes", routeHandler.List)
		api.GET("/routes/:id", routeHandler.Get)
		api.PUT("/routes/:id", routeHandler.Update)
		api.DELETE("/routes/:id", routeHandler.Delete)
		api.POST("/routes/:id/vehicles", routeHandler.AssignVehicles)
		api.DELETE("/routes/:id/vehicles", routeHandler.UnassignVehicles)
		api.GET("/routes/:id/tracking/:vehicleID", routeHandler.TrackingStatus)
		api.GET("/tracking/:vehicleID/deviation", routeHandler.CheckDeviation)

		api.GET("/alerts", alertHandler.List)
		api.GET("/alerts/recent", alertHandler.Recent)
		api.POST("/alerts/read", alertHandler.MarkRead)

		api.POST("/webhooks", webhookHandler.Create)
		api.GET("/webhooks", webhookHandler.List)
		api.PUT("/webhooks/:id", webhookHandler.Update)
		api.DELETE("/webhooks/:id", webhookHandler.Delete)
	}
}

// Start launches the background workers and the HTTP listener
func (s *Server) Start() error {
	if err := s.checker.Start(); err != nil {
		return fmt.Errorf("failed to start checker: %w", err)
	}
	s.routeMonitor.Start()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.APIPort),
		Handler: s.router,
	}

	log.Printf("[Server] Listening on :%d", s.config.APIPort)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the workers and drains the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.routeMonitor.Stop()
	s.checker.Stop()
	s.wsHub.Stop()

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
	return nil
}
