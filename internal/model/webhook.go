package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Webhook is a user-registered HTTP endpoint that receives alert
// notifications. Events lists the alert types the endpoint subscribes to;
// empty means all.
type Webhook struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`

	URL    string   `json:"url" gorm:"size:2048;not null"`
	Secret string   `json:"-" gorm:"size:128"`
	Events []string `json:"events,omitempty" gorm:"type:jsonb;serializer:json"`
	Active bool     `json:"active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Webhook) TableName() string {
	return "webhooks"
}

// Subscribed reports whether the webhook wants the given alert type.
func (w *Webhook) Subscribed(alertType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == alertType {
			return true
		}
	}
	return false
}

// WebhookDelivery is one attempt to deliver an alert to a webhook.
type WebhookDelivery struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	WebhookID uuid.UUID `json:"webhook_id" gorm:"type:uuid;not null;index"`
	AlertID   uuid.UUID `json:"alert_id" gorm:"type:uuid;not null;index"`

	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty" gorm:"type:text"`
	DurationMs int64  `json:"duration_ms"`

	CreatedAt time.Time `json:"created_at"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
