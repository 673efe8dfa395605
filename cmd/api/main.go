package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"geofleet/api/internal/config"
	"geofleet/api/internal/model"
	"geofleet/api/internal/server"
)

func main() {
	log.Println("[API] Starting GeoFleet API Server...")

	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("[API] Failed to connect to database: %v", err)
	}
	log.Println("[API] Connected to database")

	if err := autoMigrate(db); err != nil {
		log.Fatalf("[API] Failed to migrate database: %v", err)
	}
	log.Println("[API] Database migrated")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("[API] Failed to connect to Redis: %v", err)
	}
	log.Println("[API] Connected to Redis")
	defer redisClient.Close()

	natsConn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		log.Fatalf("[API] Failed to connect to NATS: %v", err)
	}
	log.Println("[API] Connected to NATS")
	defer natsConn.Close()

	srv := server.NewServer(cfg, db, redisClient, natsConn)
	srv.Setup()

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("[API] Failed to start server: %v", err)
		}
	}()
	log.Printf("[API] Server ready on :%d", cfg.APIPort)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("[API] Shutting down...")

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Errorf("[API] Shutdown error: %v", err)
	}
	log.Println("[API] Server stopped")
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Vehicle{},
		&model.VehicleAPIKey{},
		&model.Location{},
		&model.GeofenceZone{},
		&model.Route{},
		&model.RouteSegment{},
		&model.Alert{},
		&model.ZoneStay{},
		&model.Webhook{},
		&model.WebhookDelivery{},
	)
}
