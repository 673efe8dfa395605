package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geofleet/api/internal/service"
)

const vehicleIDKey = "vehicle_id"

// KeyVerifier resolves a device API key to a vehicle.
type KeyVerifier interface {
	VerifyAPIKey(ctx context.Context, plaintext string) (uuid.UUID, error)
}

// DeviceKey authenticates device location reports via the X-API-Key header
// and stores the resolved vehicle ID in the request context.
func DeviceKey(verifier KeyVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing X-API-Key header"})
			return
		}
		vehicleID, err := verifier.VerifyAPIKey(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, service.ErrInvalidAPIKey) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "key verification failed"})
			return
		}
		c.Set(vehicleIDKey, vehicleID)
		c.Next()
	}
}

// VehicleID returns the vehicle resolved by DeviceKey.
func VehicleID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(vehicleIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
