package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/caraudio-league/points-engine/internal/models"
)

// ResultRepository defines the interface for competition result data access
type ResultRepository interface {
	Create(ctx context.Context, result *models.CompetitionResult) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CompetitionResult, error)
	// GetByEventID returns results in insertion order (created_at, id).
	GetByEventID(ctx context.Context, eventID uuid.UUID) ([]*models.CompetitionResult, error)
	// LockByEventID is GetByEventID that also locks the event and its results until the
	// surrounding transaction ends, so no result can be added to or changed in the event
	// meanwhile. Call it inside WithTransaction.
	LockByEventID(ctx context.Context, eventID uuid.UUID) ([]*models.CompetitionResult, error)
	Update(ctx context.Context, result *models.CompetitionResult) error
	Delete(ctx context.Context, id uuid.UUID) error
	UpdatePlacements(ctx context.Context, updates []models.PlacementUpdate) error
	// ListForBackfill returns matching results by score descending.
	ListForBackfill(ctx context.Context, filter models.ResultFilter) ([]*models.CompetitionResult, error)
	SumSeasonClassPoints(ctx context.Context, seasonID uuid.UUID, memberID, className string) (int, error)
}

// EventRepository defines the interface for event data access
type EventRepository interface {
	// GetByID loads the event with its season populated when it has one.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListBySeason(ctx context.Context, seasonID uuid.UUID) ([]*models.Event, error)
	ListWithResults(ctx context.Context) ([]*models.Event, error)
}

// SeasonRepository defines the interface for season data access
type SeasonRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Season, error)
	GetCurrent(ctx context.Context) (*models.Season, error)
}

// MembershipRepository defines the interface for membership data access
type MembershipRepository interface {
	ListByMemberID(ctx context.Context, memberID string) ([]*models.Membership, error)
	ListByProfileID(ctx context.Context, profileID uuid.UUID) ([]*models.Membership, error)
	// ListPointsEligibleMemberIDs returns every member id covered by a paid,
	// points-eligible, active membership at now.
	ListPointsEligibleMemberIDs(ctx context.Context, now time.Time) ([]string, error)
}

// ProfileRepository defines the interface for competitor profile data access
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListWithEligibleMembership(ctx context.Context, now time.Time) ([]*models.Profile, error)
}

// PointsConfigRepository defines the interface for points configuration data access
type PointsConfigRepository interface {
	GetBySeasonID(ctx context.Context, seasonID uuid.UUID) (*models.PointsConfiguration, error)
	Create(ctx context.Context, cfg *models.PointsConfiguration) error
	Update(ctx context.Context, cfg *models.PointsConfiguration) error
}

// AchievementDefinitionRepository defines the interface for achievement definition data access
type AchievementDefinitionRepository interface {
	Create(ctx context.Context, def *models.AchievementDefinition) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AchievementDefinition, error)
	Update(ctx context.Context, def *models.AchievementDefinition) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns definitions by threshold descending.
	List(ctx context.Context, activeOnly bool) ([]*models.AchievementDefinition, error)
}

// AchievementRecipientRepository defines the interface for achievement award data access
type AchievementRecipientRepository interface {
	Create(ctx context.Context, recipient *models.AchievementRecipient) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AchievementRecipient, error)
	Delete(ctx context.Context, id uuid.UUID) error
	GetByAchievementAndProfile(ctx context.Context, achievementID, profileID uuid.UUID) (*models.AchievementRecipient, error)
	// FindInGroup returns the profile's live recipient whose definition has the group key, with the definition joined.
	FindInGroup(ctx context.Context, profileID uuid.UUID, groupKey string) (*models.AchievementRecipient, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*models.AchievementRecipient, error)
	ListByMemberID(ctx context.Context, memberID string) ([]*models.AchievementRecipient, error)
	// List returns one window of the filtered recipients, newest award first, and the
	// total number that match.
	List(ctx context.Context, filter models.RecipientFilter, limit, offset int) ([]*models.AchievementRecipient, int, error)
	ListProfileIDs(ctx context.Context, achievementID uuid.UUID) ([]uuid.UUID, error)
	ListMissingImages(ctx context.Context) ([]*models.AchievementRecipient, error)
	UpdateImage(ctx context.Context, id uuid.UUID, imageURL string, generatedAt time.Time) error
}

// QualificationRepository defines the interface for world finals qualification data access
type QualificationRepository interface {
	Get(ctx context.Context, seasonID uuid.UUID, memberID, className string) (*models.WorldFinalsQualification, error)
	Upsert(ctx context.Context, q *models.WorldFinalsQualification) error
}

// AuditRepository defines the interface for result audit data access
type AuditRepository interface {
	CreateAuditEntry(ctx context.Context, entry *models.ResultAuditEntry) error
	ListByResult(ctx context.Context, resultID uuid.UUID) ([]*models.ResultAuditEntry, error)
}
