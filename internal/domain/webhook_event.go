package domain

import (
	"encoding/json"
	"time"
)

// Webhook event processing statuses. A webhook event is created as RECEIVED
// and moved exactly once to a terminal status.
const (
	WebhookReceived  = "RECEIVED"
	WebhookProcessed = "PROCESSED"
	WebhookFailed    = "FAILED"
)

type WebhookEvent struct {
	ID               string          `json:"id"`
	Source           string          `json:"source"`
	Payload          json.RawMessage `json:"payload"`
	ProcessingStatus string          `json:"processing_status"`
	ExternalEventID  *string         `json:"external_event_id,omitempty"`
	ErrorMessage     *string         `json:"error_message,omitempty"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
