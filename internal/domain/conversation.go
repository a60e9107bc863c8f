package domain

import "time"

// Conversation statuses
const (
	ConversationOpen      = "OPEN"
	ConversationClosed    = "CLOSED"
	ConversationEscalated = "ESCALATED"
)

// Conversation is a provider-scoped message thread with one customer phone,
// keyed by (organization, business, customer phone).
type Conversation struct {
	ID                  string    `json:"id"`
	OrganizationID      string    `json:"organization_id"`
	BusinessID          *string   `json:"business_id,omitempty"`
	CustomerPhone       string    `json:"customer_phone"`
	CustomerName        *string   `json:"customer_name,omitempty"`
	Status              string    `json:"status"`
	AutoResponderActive bool      `json:"auto_responder_active"`
	LastMessageAt       time.Time `json:"last_message_at"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}
