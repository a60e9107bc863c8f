package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CalosDev/aquitado-ops/internal/domain"
)

// MessageRecord carries the fields for one persisted message row.
type MessageRecord struct {
	ConversationID    string
	Direction         string
	Status            string
	ProviderMessageID *string
	SenderPhone       string
	RecipientPhone    string
	Content           string
	RawPayload        json.RawMessage
}

func (s *PostgresStore) CreateMessage(ctx context.Context, rec MessageRecord) (*domain.Message, error) {
	var m domain.Message
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, direction, status, provider_message_id,
			sender_phone, recipient_phone, content, raw_payload, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, conversation_id, direction, status, provider_message_id,
			sender_phone, recipient_phone, content, raw_payload, processed_at, created_at
	`, rec.ConversationID, rec.Direction, rec.Status, rec.ProviderMessageID,
		rec.SenderPhone, rec.RecipientPhone, rec.Content, rec.RawPayload,
	).Scan(
		&m.ID, &m.ConversationID, &m.Direction, &m.Status, &m.ProviderMessageID,
		&m.SenderPhone, &m.RecipientPhone, &m.Content, &m.RawPayload,
		&m.ProcessedAt, &m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, direction, status, provider_message_id,
			sender_phone, recipient_phone, content, raw_payload, processed_at, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var m domain.Message
		err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Direction, &m.Status, &m.ProviderMessageID,
			&m.SenderPhone, &m.RecipientPhone, &m.Content, &m.RawPayload,
			&m.ProcessedAt, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}

	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}
