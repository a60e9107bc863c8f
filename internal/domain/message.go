package domain

import (
	"encoding/json"
	"time"
)

// Message directions
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"
)

// Message statuses
const (
	MessageReceived = "RECEIVED"
	MessageSent     = "SENT"
	MessageFailed   = "FAILED"
)

type Message struct {
	ID                string          `json:"id"`
	ConversationID    string          `json:"conversation_id"`
	Direction         string          `json:"direction"`
	Status            string          `json:"status"`
	ProviderMessageID *string         `json:"provider_message_id,omitempty"`
	SenderPhone       string          `json:"sender_phone"`
	RecipientPhone    string          `json:"recipient_phone"`
	Content           string          `json:"content"`
	RawPayload        json.RawMessage `json:"raw_payload,omitempty"`
	ProcessedAt       time.Time       `json:"processed_at"`
	CreatedAt         time.Time       `json:"created_at"`
}
