package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/CalosDev/aquitado-ops/internal/domain"
)

const conversationColumns = `id, organization_id, business_id, customer_phone,
	customer_name, status, auto_responder_active, last_message_at, created_at, updated_at`

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(
		&c.ID, &c.OrganizationID, &c.BusinessID, &c.CustomerPhone,
		&c.CustomerName, &c.Status, &c.AutoResponderActive,
		&c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// UpsertConversation finds or creates the conversation for one
// (organization, business, phone) triple. An existing row gets its display
// name refreshed and last_message_at bumped; a new row starts OPEN with the
// auto-responder enabled. The unique index (NULLS NOT DISTINCT on
// business_id) makes concurrent first messages converge on one row instead
// of racing.
func (s *PostgresStore) UpsertConversation(ctx context.Context, organizationID string, businessID *string, customerPhone string, customerName *string) (*domain.Conversation, error) {
	conversation, err := scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (organization_id, business_id, customer_phone, customer_name, status, auto_responder_active, last_message_at)
		VALUES ($1, $2, $3, $4, $5, true, NOW())
		ON CONFLICT (organization_id, business_id, customer_phone)
		DO UPDATE SET
			customer_name = COALESCE(EXCLUDED.customer_name, conversations.customer_name),
			last_message_at = NOW(),
			updated_at = NOW()
		RETURNING `+conversationColumns+`
	`, organizationID, businessID, customerPhone, customerName, domain.ConversationOpen))
	if err != nil {
		return nil, fmt.Errorf("upserting conversation: %w", err)
	}
	return conversation, nil
}

// LatestConversationByPhone returns the most recently active conversation for
// a phone across all organizations, or nil when the phone has no history.
func (s *PostgresStore) LatestConversationByPhone(ctx context.Context, customerPhone string) (*domain.Conversation, error) {
	conversation, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE customer_phone = $1
		ORDER BY last_message_at DESC
		LIMIT 1
	`, customerPhone))
	if err != nil {
		return nil, fmt.Errorf("querying latest conversation: %w", err)
	}
	return conversation, nil
}

func (s *PostgresStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	conversation, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conversation, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, organizationID string, limit int) ([]domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations`
	args := []interface{}{}
	argIdx := 1

	if organizationID != "" {
		query += fmt.Sprintf(" WHERE organization_id = $%d", argIdx)
		args = append(args, organizationID)
		argIdx++
	}

	query += " ORDER BY last_message_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		err := rows.Scan(
			&c.ID, &c.OrganizationID, &c.BusinessID, &c.CustomerPhone,
			&c.CustomerName, &c.Status, &c.AutoResponderActive,
			&c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conversations = append(conversations, c)
	}

	if conversations == nil {
		conversations = []domain.Conversation{}
	}
	return conversations, nil
}
