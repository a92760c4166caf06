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

// PostgresEventRepository implements EventRepository for PostgreSQL
type PostgresEventRepository struct {
	db *database.DB
}

// NewPostgresEventRepository creates a new event repository
func NewPostgresEventRepository(db *database.DB) EventRepository {
	return &PostgresEventRepository{db: db}
}

// GetByID retrieves an event and its season
func (r *PostgresEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	query := `
		SELECT e.id, e.title, e.event_date, e.season_id, e.points_multiplier,
		       s.id, s.name, s.year, s.start_date, s.end_date, s.is_current, s.qualification_points_threshold
		FROM events e
		LEFT JOIN seasons s ON s.id = e.season_id
		WHERE e.id = $1
	`

	var (
		event    models.Event
		seasonID *uuid.UUID
		season   models.Season
		name     *string
		year     *int
		start    *time.Time
		end      *time.Time
		current  *bool
	)
	err := r.db.Conn(ctx).QueryRow(ctx, query, id).Scan(
		&event.ID, &event.Title, &event.EventDate, &event.SeasonID, &event.PointsMultiplier,
		&seasonID, &name, &year, &start, &end, &current, &season.QualificationPointsThreshold,
	)
	if err != nil {
		return nil, translateError(err)
	}

	if seasonID != nil {
		season.ID = *seasonID
		season.Name = stringValue(name)
		if year != nil {
			season.Year = *year
		}
		if start != nil {
			season.StartDate = *start
		}
		if end != nil {
			season.EndDate = *end
		}
		season.IsCurrent = current != nil && *current
		event.Season = &season
	}
	return &event, nil
}

// ListBySeason retrieves the events of a season by date
func (r *PostgresEventRepository) ListBySeason(ctx context.Context, seasonID uuid.UUID) ([]*models.Event, error) {
	query := `
		SELECT id, title, event_date, season_id, points_multiplier
		FROM events
		WHERE season_id = $1
		ORDER BY event_date ASC, id ASC
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by season: %w", err)
	}
	return collectEvents(rows)
}

// ListWithResults retrieves every event that has at least one result
func (r *PostgresEventRepository) ListWithResults(ctx context.Context) ([]*models.Event, error) {
	query := `
		SELECT e.id, e.title, e.event_date, e.season_id, e.points_multiplier
		FROM events e
		WHERE EXISTS (SELECT 1 FROM competition_results r WHERE r.event_id = e.id)
		ORDER BY e.event_date ASC, e.id ASC
	`

	rows, err := r.db.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events with results: %w", err)
	}
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]*models.Event, error) {
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		event := &models.Event{}
		if err := rows.Scan(&event.ID, &event.Title, &event.EventDate, &event.SeasonID, &event.PointsMultiplier); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

// PostgresSeasonRepository implements SeasonRepository for PostgreSQL
type PostgresSeasonRepository struct {
	db *database.DB
}

// NewPostgresSeasonRepository creates a new season repository
func NewPostgresSeasonRepository(db *database.DB) SeasonRepository {
	return &PostgresSeasonRepository{db: db}
}

const seasonColumns = `id, name, year, start_date, end_date, is_current, qualification_points_threshold`

func scanSeason(row pgx.Row) (*models.Season, error) {
	season := &models.Season{}
	err := row.Scan(
		&season.ID, &season.Name, &season.Year, &season.StartDate, &season.EndDate,
		&season.IsCurrent, &season.QualificationPointsThreshold,
	)
	if err != nil {
		return nil, translateError(err)
	}
	return season, nil
}

// GetByID retrieves a season by ID
func (r *PostgresSeasonRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Season, error) {
	return scanSeason(r.db.Conn(ctx).QueryRow(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE id = $1`, id))
}

// GetCurrent retrieves the season flagged as current
func (r *PostgresSeasonRepository) GetCurrent(ctx context.Context) (*models.Season, error) {
	return scanSeason(r.db.Conn(ctx).QueryRow(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE is_current LIMIT 1`))
}
