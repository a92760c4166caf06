package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/models"
)

const resultColumns = `
	r.id, r.event_id, r.season_id, r.competitor_id, r.competitor_name, r.meca_id,
	r.competition_class, r.class_id, r.format, r.score, r.placement, r.points_earned,
	r.revision_count, r.created_by, r.updated_by, r.modification_reason, r.created_at, r.updated_at,
	COALESCE(cc.format, ''), COALESCE(e.points_multiplier, 2)`

const resultFrom = `
	FROM competition_results r
	JOIN events e ON e.id = r.event_id
	LEFT JOIN competition_classes cc ON cc.id = r.class_id`

// PostgresResultRepository implements ResultRepository for PostgreSQL
type PostgresResultRepository struct {
	db *database.DB
}

// NewPostgresResultRepository creates a new competition result repository
func NewPostgresResultRepository(db *database.DB) ResultRepository {
	return &PostgresResultRepository{db: db}
}

func scanResult(row pgx.Row) (*models.CompetitionResult, error) {
	var (
		result   models.CompetitionResult
		memberID *string
		format   *string
		note     *string
	)
	err := row.Scan(
		&result.ID, &result.EventID, &result.SeasonID, &result.CompetitorID, &result.CompetitorName, &memberID,
		&result.CompetitionClass, &result.ClassID, &format, &result.Score, &result.Placement, &result.PointsEarned,
		&result.Revision, &result.CreatedBy, &result.UpdatedBy, &note, &result.CreatedAt, &result.UpdatedAt,
		&result.ClassFormat, &result.EventMultiplier,
	)
	if err != nil {
		return nil, err
	}
	result.MemberID = stringValue(memberID)
	result.Format = stringValue(format)
	result.ModificationNote = stringValue(note)
	return &result, nil
}

func collectResults(rows pgx.Rows) ([]*models.CompetitionResult, error) {
	defer rows.Close()

	var results []*models.CompetitionResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competition result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating competition results: %w", err)
	}
	return results, nil
}

// Create inserts a new competition result
func (r *PostgresResultRepository) Create(ctx context.Context, result *models.CompetitionResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	now := time.Now().UTC()
	result.CreatedAt, result.UpdatedAt = now, now

	query := `
		INSERT INTO competition_results (
			id, event_id, season_id, competitor_id, competitor_name, meca_id,
			competition_class, class_id, format, score, placement, points_earned,
			revision_count, created_by, updated_by, modification_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		result.ID, result.EventID, result.SeasonID, result.CompetitorID, result.CompetitorName, nullableString(result.MemberID),
		result.CompetitionClass, result.ClassID, nullableString(result.Format), result.Score, result.Placement, result.PointsEarned,
		result.Revision, result.CreatedBy, result.UpdatedBy, nullableString(result.ModificationNote), result.CreatedAt, result.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create competition result: %w", translateError(err))
	}
	return nil
}

// GetByID retrieves a competition result by ID
func (r *PostgresResultRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CompetitionResult, error) {
	query := `SELECT` + resultColumns + resultFrom + ` WHERE r.id = $1`

	result, err := scanResult(r.db.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, translateError(err)
	}
	return result, nil
}

// GetByEventID retrieves every result of an event in insertion order
func (r *PostgresResultRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*models.CompetitionResult, error) {
	query := `SELECT` + resultColumns + resultFrom + `
		WHERE r.event_id = $1
		ORDER BY r.created_at ASC, r.id ASC`

	rows, err := r.db.Conn(ctx).Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for event: %w", err)
	}
	return collectResults(rows)
}

// LockByEventID locks the event row, which blocks result inserts through the foreign key,
// and returns the event's results locked for update
func (r *PostgresResultRepository) LockByEventID(ctx context.Context, eventID uuid.UUID) ([]*models.CompetitionResult, error) {
	conn := r.db.Conn(ctx)
	if _, err := conn.Exec(ctx, `SELECT 1 FROM events WHERE id = $1 FOR UPDATE`, eventID); err != nil {
		return nil, fmt.Errorf("failed to lock event: %w", err)
	}

	query := `SELECT` + resultColumns + resultFrom + `
		WHERE r.event_id = $1
		ORDER BY r.created_at ASC, r.id ASC
		FOR UPDATE OF r`

	rows, err := conn.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for event: %w", err)
	}
	return collectResults(rows)
}

// Update saves edited fields and bumps the revision counter
func (r *PostgresResultRepository) Update(ctx context.Context, result *models.CompetitionResult) error {
	result.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE competition_results SET
			event_id = $2, season_id = $3, competitor_id = $4, competitor_name = $5, meca_id = $6,
			competition_class = $7, class_id = $8, format = $9, score = $10,
			updated_by = $11, modification_reason = $12, updated_at = $13,
			revision_count = revision_count + 1
		WHERE id = $1
		RETURNING revision_count
	`

	err := r.db.Conn(ctx).QueryRow(ctx, query,
		result.ID, result.EventID, result.SeasonID, result.CompetitorID, result.CompetitorName, nullableString(result.MemberID),
		result.CompetitionClass, result.ClassID, nullableString(result.Format), result.Score,
		result.UpdatedBy, nullableString(result.ModificationNote), result.UpdatedAt,
	).Scan(&result.Revision)
	if err != nil {
		return fmt.Errorf("failed to update competition result: %w", translateError(err))
	}
	return nil
}

// Delete removes a competition result
func (r *PostgresResultRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM competition_results WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete competition result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePlacements writes placement and points for many results in one round trip
func (r *PostgresResultRepository) UpdatePlacements(ctx context.Context, updates []models.PlacementUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	query := `
		UPDATE competition_results
		SET placement = $2, points_earned = $3, updated_at = NOW()
		WHERE id = $1 AND (placement IS DISTINCT FROM $2 OR points_earned IS DISTINCT FROM $3)
	`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.ResultID, u.Placement, u.PointsEarned)
	}

	br := r.db.Conn(ctx).SendBatch(ctx, batch)
	defer br.Close()

	for i := range updates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to update placement for result %s: %w", updates[i].ResultID, err)
		}
	}
	return nil
}

// ListForBackfill retrieves results ordered by score descending
func (r *PostgresResultRepository) ListForBackfill(ctx context.Context, filter models.ResultFilter) ([]*models.CompetitionResult, error) {
	query := `SELECT` + resultColumns + resultFrom + `
		WHERE ($1::boolean = FALSE OR r.competitor_id IS NOT NULL)
		  AND ($2::timestamptz IS NULL OR e.event_date >= $2)
		  AND ($3::timestamptz IS NULL OR e.event_date <= $3)
		ORDER BY r.score DESC, r.created_at ASC, r.id ASC`

	rows, err := r.db.Conn(ctx).Query(ctx, query, filter.WithCompetitor, filter.StartDate, filter.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for backfill: %w", err)
	}
	return collectResults(rows)
}

// SumSeasonClassPoints totals a member's points in one class across a season
func (r *PostgresResultRepository) SumSeasonClassPoints(ctx context.Context, seasonID uuid.UUID, memberID, className string) (int, error) {
	query := `
		SELECT COALESCE(SUM(points_earned), 0)
		FROM competition_results
		WHERE season_id = $1 AND meca_id = $2 AND LOWER(competition_class) = LOWER($3)
	`

	var total int
	if err := r.db.Conn(ctx).QueryRow(ctx, query, seasonID, memberID, className).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum season class points: %w", err)
	}
	return total, nil
}
