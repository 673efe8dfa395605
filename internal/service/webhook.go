package service

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"geofleet/api/internal/model"
)

// WebhookService delivers alert notifications to user-registered HTTP
// endpoints. Deliveries run in the background; a slow subscriber never blocks
// detection.
type WebhookService struct {
	db     *gorm.DB
	client *http.Client
}

// NewWebhookService creates a new webhook service
func NewWebhookService(db *gorm.DB, timeout time.Duration) *WebhookService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookService{
		db:     db,
		client: &http.Client{Timeout: timeout},
	}
}

// Create registers a webhook
func (s *WebhookService) Create(ctx context.Context, webhook *model.Webhook) error {
	if webhook.ID == uuid.Nil {
		webhook.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(webhook).Error
}

// List returns a user's webhooks
func (s *WebhookService) List(ctx context.Context, userID uuid.UUID) ([]model.Webhook, error) {
	var webhooks []model.Webhook
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&webhooks).Error
	return webhooks, err
}

// Update updates a webhook
func (s *WebhookService) Update(ctx context.Context, webhook *model.Webhook) error {
	return s.db.WithContext(ctx).Save(webhook).Error
}

// Delete removes a webhook
func (s *WebhookService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&model.Webhook{}, "id = ?", id).Error
}

// Notify fans an alert out to every active webhook of the owning user that
// subscribes to its type. Delivery happens asynchronously.
func (s *WebhookService) Notify(ctx context.Context, userID uuid.UUID, alert *model.Alert) {
	var webhooks []model.Webhook
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = true", userID).
		Find(&webhooks).Error
	if err != nil {
		log.Errorf("[WebhookService] Failed to load webhooks for user %s: %v", userID, err)
		return
	}

	for i := range webhooks {
		if !webhooks[i].Subscribed(alert.Type) {
			continue
		}
		go s.deliver(webhooks[i], alert)
	}
}

const deliveryAttempts = 3

func (s *WebhookService) deliver(webhook model.Webhook, alert *model.Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		return
	}

	backoff := time.Second
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		if s.attempt(webhook, alert, payload) {
			return
		}
		if attempt < deliveryAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	log.Warnf("[WebhookService] Giving up on %s after %d attempts", webhook.URL, deliveryAttempts)
}

// attempt makes one delivery and records it. 5xx and transport errors are
// retryable; anything else ends the delivery.
func (s *WebhookService) attempt(webhook model.Webhook, alert *model.Alert, payload []byte) bool {
	delivery := model.WebhookDelivery{
		ID:        uuid.New(),
		WebhookID: webhook.ID,
		AlertID:   alert.ID,
	}

	start := time.Now()
	req, err := newDeliveryRequest(&webhook, alert.Type, payload)
	if err != nil {
		delivery.Error = err.Error()
		s.recordDelivery(&delivery)
		return true
	}

	resp, err := s.client.Do(req)
	delivery.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		delivery.Error = err.Error()
		s.recordDelivery(&delivery)
		log.Warnf("[WebhookService] Delivery to %s failed: %v", webhook.URL, err)
		return false
	}
	defer resp.Body.Close()

	delivery.StatusCode = resp.StatusCode
	s.recordDelivery(&delivery)

	if resp.StatusCode >= 500 {
		log.Warnf("[WebhookService] Delivery to %s returned %d", webhook.URL, resp.StatusCode)
		return false
	}
	return true
}

func (s *WebhookService) recordDelivery(delivery *model.WebhookDelivery) {
	if err := s.db.Create(delivery).Error; err != nil {
		log.Errorf("[WebhookService] Failed to record delivery: %v", err)
	}
}

// newDeliveryRequest builds the signed POST for one webhook delivery.
func newDeliveryRequest(webhook *model.Webhook, alertType string, payload []byte) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Alert-Type", alertType)
	if webhook.Secret != "" {
		req.Header.Set("X-Signature", sign(webhook.Secret, payload))
	}
	return req, nil
}

// sign computes the hex HMAC-SHA256 of the payload under the shared secret.
func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
