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

// activeEligibleMembership is shared by the bulk eligibility queries. $1 is now, $2 the eligible categories.
const activeEligibleMembership = `
	m.payment_status = 'paid'
	AND m.category = ANY($2)
	AND (m.cancelled_at IS NULL OR m.cancel_at_period_end)
	AND (
		m.end_date IS NULL
		OR (m.cancel_at_period_end AND m.end_date > $1)
		OR (NOT m.cancel_at_period_end AND m.end_date >= $1)
	)`

func eligibleCategories() []string {
	categories := make([]string, 0, len(models.PointsEligibleCategories))
	for _, c := range models.PointsEligibleCategories {
		categories = append(categories, string(c))
	}
	return categories
}

// PostgresMembershipRepository implements MembershipRepository for PostgreSQL
type PostgresMembershipRepository struct {
	db *database.DB
}

// NewPostgresMembershipRepository creates a new membership repository
func NewPostgresMembershipRepository(db *database.DB) MembershipRepository {
	return &PostgresMembershipRepository{db: db}
}

const membershipColumns = `
	m.id, m.user_id, COALESCE(m.meca_id, p.meca_id, ''), m.category, m.payment_status,
	m.start_date, m.end_date, m.cancel_at_period_end, m.cancelled_at, m.created_at`

func collectMemberships(rows pgx.Rows) ([]*models.Membership, error) {
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		m := &models.Membership{}
		err := rows.Scan(
			&m.ID, &m.ProfileID, &m.MemberID, &m.Category, &m.PaymentStatus,
			&m.StartDate, &m.EndDate, &m.CancelAtPeriodEnd, &m.CancelledAt, &m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}
	return memberships, nil
}

// ListByMemberID retrieves memberships by external member identifier
func (r *PostgresMembershipRepository) ListByMemberID(ctx context.Context, memberID string) ([]*models.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships m
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE COALESCE(m.meca_id, p.meca_id) = $1
		ORDER BY m.start_date DESC`

	rows, err := r.db.Conn(ctx).Query(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships by member id: %w", err)
	}
	return collectMemberships(rows)
}

// ListByProfileID retrieves memberships held by a profile
func (r *PostgresMembershipRepository) ListByProfileID(ctx context.Context, profileID uuid.UUID) ([]*models.Membership, error) {
	query := `SELECT ` + membershipColumns + `
		FROM memberships m
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE m.user_id = $1
		ORDER BY m.start_date DESC`

	rows, err := r.db.Conn(ctx).Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships by profile: %w", err)
	}
	return collectMemberships(rows)
}

// ListPointsEligibleMemberIDs retrieves every member id with an active points-eligible membership
func (r *PostgresMembershipRepository) ListPointsEligibleMemberIDs(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT COALESCE(m.meca_id, p.meca_id)
		FROM memberships m
		LEFT JOIN profiles p ON p.id = m.user_id
		WHERE COALESCE(m.meca_id, p.meca_id, '') <> ''
		  AND ` + activeEligibleMembership

	rows, err := r.db.Conn(ctx).Query(ctx, query, now, eligibleCategories())
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member ids: %w", err)
	}
	return ids, nil
}

// PostgresProfileRepository implements ProfileRepository for PostgreSQL
type PostgresProfileRepository struct {
	db *database.DB
}

// NewPostgresProfileRepository creates a new profile repository
func NewPostgresProfileRepository(db *database.DB) ProfileRepository {
	return &PostgresProfileRepository{db: db}
}

// GetByID retrieves a profile by ID
func (r *PostgresProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	query := `SELECT id, COALESCE(meca_id, ''), first_name, last_name, email FROM profiles WHERE id = $1`

	p := &models.Profile{}
	err := r.db.Conn(ctx).QueryRow(ctx, query, id).Scan(&p.ID, &p.MemberID, &p.FirstName, &p.LastName, &p.Email)
	if err != nil {
		return nil, translateError(err)
	}
	return p, nil
}

// ListWithEligibleMembership retrieves profiles holding an active points-eligible membership
func (r *PostgresProfileRepository) ListWithEligibleMembership(ctx context.Context, now time.Time) ([]*models.Profile, error) {
	query := `
		SELECT DISTINCT p.id, COALESCE(p.meca_id, ''), p.first_name, p.last_name, p.email
		FROM profiles p
		JOIN memberships m ON m.user_id = p.id
		WHERE ` + activeEligibleMembership

	rows, err := r.db.Conn(ctx).Query(ctx, query, now, eligibleCategories())
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles with eligible membership: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		p := &models.Profile{}
		if err := rows.Scan(&p.ID, &p.MemberID, &p.FirstName, &p.LastName, &p.Email); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}
