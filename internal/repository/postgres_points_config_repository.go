package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/models"
)

// PostgresPointsConfigRepository implements PointsConfigRepository for PostgreSQL
type PostgresPointsConfigRepository struct {
	db *database.DB
}

// NewPostgresPointsConfigRepository creates a new points configuration repository
func NewPostgresPointsConfigRepository(db *database.DB) PointsConfigRepository {
	return &PostgresPointsConfigRepository{db: db}
}

// GetBySeasonID retrieves the configuration of a season
func (r *PostgresPointsConfigRepository) GetBySeasonID(ctx context.Context, seasonID uuid.UUID) (*models.PointsConfiguration, error) {
	query := `
		SELECT id, season_id,
		       standard_1st_place, standard_2nd_place, standard_3rd_place, standard_4th_place, standard_5th_place,
		       four_x_1st_place, four_x_2nd_place, four_x_3rd_place, four_x_4th_place, four_x_5th_place,
		       four_x_extended_enabled, four_x_extended_points, four_x_extended_max_place,
		       is_active, COALESCE(description, ''), updated_by, created_at, updated_at
		FROM points_configurations
		WHERE season_id = $1
	`

	c := &models.PointsConfiguration{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, seasonID).Scan(
		&c.ID, &c.SeasonID,
		&c.Standard1stPlace, &c.Standard2ndPlace, &c.Standard3rdPlace, &c.Standard4thPlace, &c.Standard5thPlace,
		&c.FourX1stPlace, &c.FourX2ndPlace, &c.FourX3rdPlace, &c.FourX4thPlace, &c.FourX5thPlace,
		&c.FourXExtendedEnabled, &c.FourXExtendedPoints, &c.FourXExtendedMaxPlace,
		&c.IsActive, &c.Description, &c.UpdatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return c, nil
}

// Create inserts a configuration. A concurrent insert for the same season is ignored.
func (r *PostgresPointsConfigRepository) Create(ctx context.Context, c *models.PointsConfiguration) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	query := `
		INSERT INTO points_configurations (
			id, season_id,
			standard_1st_place, standard_2nd_place, standard_3rd_place, standard_4th_place, standard_5th_place,
			four_x_1st_place, four_x_2nd_place, four_x_3rd_place, four_x_4th_place, four_x_5th_place,
			four_x_extended_enabled, four_x_extended_points, four_x_extended_max_place,
			is_active, description, updated_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (season_id) DO NOTHING
	`

	_, err := r.db.Conn(ctx).Exec(ctx, query,
		c.ID, c.SeasonID,
		c.Standard1stPlace, c.Standard2ndPlace, c.Standard3rdPlace, c.Standard4thPlace, c.Standard5thPlace,
		c.FourX1stPlace, c.FourX2ndPlace, c.FourX3rdPlace, c.FourX4thPlace, c.FourX5thPlace,
		c.FourXExtendedEnabled, c.FourXExtendedPoints, c.FourXExtendedMaxPlace,
		c.IsActive, nullableString(c.Description), c.UpdatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create points configuration: %w", err)
	}
	return nil
}

// Update saves a configuration
func (r *PostgresPointsConfigRepository) Update(ctx context.Context, c *models.PointsConfiguration) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE points_configurations SET
			standard_1st_place = $2, standard_2nd_place = $3, standard_3rd_place = $4,
			standard_4th_place = $5, standard_5th_place = $6,
			four_x_1st_place = $7, four_x_2nd_place = $8, four_x_3rd_place = $9,
			four_x_4th_place = $10, four_x_5th_place = $11,
			four_x_extended_enabled = $12, four_x_extended_points = $13, four_x_extended_max_place = $14,
			is_active = $15, description = $16, updated_by = $17, updated_at = $18
		WHERE id = $1
	`

	tag, err := r.db.Conn(ctx).Exec(ctx, query,
		c.ID,
		c.Standard1stPlace, c.Standard2ndPlace, c.Standard3rdPlace, c.Standard4thPlace, c.Standard5thPlace,
		c.FourX1stPlace, c.FourX2ndPlace, c.FourX3rdPlace, c.FourX4thPlace, c.FourX5thPlace,
		c.FourXExtendedEnabled, c.FourXExtendedPoints, c.FourXExtendedMaxPlace,
		c.IsActive, nullableString(c.Description), c.UpdatedBy, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update points configuration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
