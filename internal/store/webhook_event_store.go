package store

import (
	"context"
	"fmt"

	"github.com/CalosDev/aquitado-ops/internal/domain"
)

// maxErrorMessageLen bounds the stored error text on FAILED webhook events.
const maxErrorMessageLen = 500

func (s *PostgresStore) CreateWebhookEvent(ctx context.Context, source string, payload []byte, externalEventID *string) (*domain.WebhookEvent, error) {
	var e domain.WebhookEvent
	err := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_events (source, payload, processing_status, external_event_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, source, payload, processing_status, external_event_id,
			error_message, processed_at, created_at
	`, source, payload, domain.WebhookReceived, externalEventID).Scan(
		&e.ID, &e.Source, &e.Payload, &e.ProcessingStatus, &e.ExternalEventID,
		&e.ErrorMessage, &e.ProcessedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting webhook event: %w", err)
	}
	return &e, nil
}

// MarkWebhookProcessed moves a RECEIVED event to its terminal PROCESSED state.
func (s *PostgresStore) MarkWebhookProcessed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET processing_status = $2, processed_at = NOW()
		WHERE id = $1 AND processing_status = $3
	`, id, domain.WebhookProcessed, domain.WebhookReceived)
	if err != nil {
		return fmt.Errorf("marking webhook processed: %w", err)
	}
	return nil
}

// MarkWebhookFailed moves a RECEIVED event to its terminal FAILED state with
// a truncated error message.
func (s *PostgresStore) MarkWebhookFailed(ctx context.Context, id string, errMsg string) error {
	if len(errMsg) > maxErrorMessageLen {
		errMsg = errMsg[:maxErrorMessageLen]
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_events
		SET processing_status = $2, error_message = $3, processed_at = NOW()
		WHERE id = $1 AND processing_status = $4
	`, id, domain.WebhookFailed, errMsg, domain.WebhookReceived)
	if err != nil {
		return fmt.Errorf("marking webhook failed: %w", err)
	}
	return nil
}
