package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/models"
)

// Repositories holds all repository implementations
type Repositories struct {
	Result                ResultRepository
	Event                 EventRepository
	Season                SeasonRepository
	Membership            MembershipRepository
	Profile               ProfileRepository
	PointsConfig          PointsConfigRepository
	AchievementDefinition AchievementDefinitionRepository
	AchievementRecipient  AchievementRecipientRepository
	Qualification         QualificationRepository
	Audit                 AuditRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Result:                NewPostgresResultRepository(db),
		Event:                 NewPostgresEventRepository(db),
		Season:                NewPostgresSeasonRepository(db),
		Membership:            NewPostgresMembershipRepository(db),
		Profile:               NewPostgresProfileRepository(db),
		PointsConfig:          NewPostgresPointsConfigRepository(db),
		AchievementDefinition: NewPostgresAchievementDefinitionRepository(db),
		AchievementRecipient:  NewPostgresAchievementRecipientRepository(db),
		Qualification:         NewPostgresQualificationRepository(db),
		Audit:                 NewPostgresAuditRepository(db),
	}, nil
}

const uniqueViolation = "23505"

// translateError maps driver errors onto model sentinels
func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
