package domain

import "time"

type Business struct {
	ID                   string    `json:"id"`
	OrganizationID       string    `json:"organization_id"`
	Name                 string    `json:"name"`
	AutoResponderEnabled bool      `json:"auto_responder_enabled"`
	Latitude             *float64  `json:"latitude,omitempty"`
	Longitude            *float64  `json:"longitude,omitempty"`
	Address              *string   `json:"address,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// HasCoordinates reports whether the business has a usable map location.
func (b *Business) HasCoordinates() bool {
	return b.Latitude != nil && b.Longitude != nil
}

// Suggestion is one ranked directory-search result offered to a customer.
type Suggestion struct {
	Name      string   `json:"name"`
	Link      string   `json:"link,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   *string  `json:"address,omitempty"`
}

func (s *Suggestion) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}
