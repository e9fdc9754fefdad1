package webhooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"refillplan/internal/store"
)

// Publisher queues run notifications for the configured endpoint. The
// worker signs and delivers them.
type Publisher struct {
	Store  store.Store
	URL    string
	Secret string
}

func NewPublisher(s store.Store, url, secret string) *Publisher {
	return &Publisher{Store: s, URL: url, Secret: secret}
}

// Emit enqueues one delivery of eventType carrying data. It is a no-op
// when no endpoint is configured.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) (string, error) {
	if p == nil || p.URL == "" {
		return "", nil
	}
	payload := map[string]any{
		"id":   "evt_" + uuid.New().String(),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return p.Store.EnqueueWebhook(ctx, eventType, p.URL, p.Secret, body)
}
