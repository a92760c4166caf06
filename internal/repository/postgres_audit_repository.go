package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/models"
)

// PostgresAuditRepository implements AuditRepository for PostgreSQL
type PostgresAuditRepository struct {
	db *database.DB
}

// NewPostgresAuditRepository creates a new result audit repository
func NewPostgresAuditRepository(db *database.DB) AuditRepository {
	return &PostgresAuditRepository{db: db}
}

// CreateAuditEntry appends an audit record
func (r *PostgresAuditRepository) CreateAuditEntry(ctx context.Context, e *models.ResultAuditEntry) error {
	query := `
		INSERT INTO result_audit_log (
			id, session_id, action, result_id, event_id, old_data, new_data, user_id, ip_address, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		e.ID, e.SessionID, string(e.Action), e.ResultID, e.EventID, e.OldData, e.NewData,
		e.UserID, nullableString(e.IPAddress), nullableString(e.Reason), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

// ListByResult retrieves the audit trail of a result, oldest first
func (r *PostgresAuditRepository) ListByResult(ctx context.Context, resultID uuid.UUID) ([]*models.ResultAuditEntry, error) {
	query := `
		SELECT id, session_id, action, result_id, event_id, old_data, new_data, user_id,
		       COALESCE(ip_address, ''), COALESCE(reason, ''), created_at
		FROM result_audit_log
		WHERE result_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ResultAuditEntry
	for rows.Next() {
		e := &models.ResultAuditEntry{}
		err := rows.Scan(
			&e.ID, &e.SessionID, &e.Action, &e.ResultID, &e.EventID, &e.OldData, &e.NewData,
			&e.UserID, &e.IPAddress, &e.Reason, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}
