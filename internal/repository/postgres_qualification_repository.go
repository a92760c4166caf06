package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/models"
)

// PostgresQualificationRepository implements QualificationRepository for PostgreSQL
type PostgresQualificationRepository struct {
	db *database.DB
}

// NewPostgresQualificationRepository creates a new qualification repository
func NewPostgresQualificationRepository(db *database.DB) QualificationRepository {
	return &PostgresQualificationRepository{db: db}
}

// Get retrieves a member's qualification for a class in a season
func (r *PostgresQualificationRepository) Get(ctx context.Context, seasonID uuid.UUID, memberID, className string) (*models.WorldFinalsQualification, error) {
	query := `
		SELECT id, season_id, meca_id, competitor_name, user_id, competition_class, total_points, qualified_at, updated_at
		FROM world_finals_qualifications
		WHERE season_id = $1 AND meca_id = $2 AND LOWER(competition_class) = LOWER($3)
	`

	q := &models.WorldFinalsQualification{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, seasonID, memberID, className).Scan(
		&q.ID, &q.SeasonID, &q.MemberID, &q.CompetitorName, &q.ProfileID,
		&q.CompetitionClass, &q.TotalPoints, &q.QualifiedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return q, nil
}

// Upsert creates the qualification or refreshes its totals
func (r *PostgresQualificationRepository) Upsert(ctx context.Context, q *models.WorldFinalsQualification) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}

	query := `
		INSERT INTO world_finals_qualifications (
			id, season_id, meca_id, competitor_name, user_id, competition_class, total_points, qualified_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (season_id, meca_id, competition_class) DO UPDATE SET
			competitor_name = EXCLUDED.competitor_name,
			user_id = COALESCE(EXCLUDED.user_id, world_finals_qualifications.user_id),
			total_points = EXCLUDED.total_points,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		q.ID, q.SeasonID, q.MemberID, q.CompetitorName, q.ProfileID,
		q.CompetitionClass, q.TotalPoints, q.QualifiedAt, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert world finals qualification: %w", err)
	}
	return nil
}
