package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/CalosDev/aquitado-ops/internal/domain"
)

const businessColumns = `id, organization_id, name, auto_responder_enabled,
	latitude, longitude, address, created_at, updated_at`

func scanBusiness(row pgx.Row) (*domain.Business, error) {
	var b domain.Business
	err := row.Scan(
		&b.ID, &b.OrganizationID, &b.Name, &b.AutoResponderEnabled,
		&b.Latitude, &b.Longitude, &b.Address, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*domain.Business, error) {
	business, err := scanBusiness(s.pool.QueryRow(ctx, `
		SELECT `+businessColumns+`
		FROM businesses WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("querying business: %w", err)
	}
	return business, nil
}

// SearchBusinesses finds businesses whose name or address matches the query,
// most recently updated first.
func (s *PostgresStore) SearchBusinesses(ctx context.Context, query string, limit int) ([]domain.Business, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+businessColumns+`
		FROM businesses
		WHERE name ILIKE '%' || $1 || '%'
		   OR address ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching businesses: %w", err)
	}
	defer rows.Close()

	var businesses []domain.Business
	for rows.Next() {
		var b domain.Business
		err := rows.Scan(
			&b.ID, &b.OrganizationID, &b.Name, &b.AutoResponderEnabled,
			&b.Latitude, &b.Longitude, &b.Address, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning business: %w", err)
		}
		businesses = append(businesses, b)
	}

	if businesses == nil {
		businesses = []domain.Business{}
	}
	return businesses, nil
}
