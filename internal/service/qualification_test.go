package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/models"
)

// MockSeasonRepository mocks season repository
type MockSeasonRepository struct {
	mock.Mock
}

func (m *MockSeasonRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Season, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Season), args.Error(1)
}

func (m *MockSeasonRepository) GetCurrent(ctx context.Context) (*models.Season, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Season), args.Error(1)
}

// MockQualificationRepository mocks qualification repository
type MockQualificationRepository struct {
	mock.Mock
}

func (m *MockQualificationRepository) Get(ctx context.Context, seasonID uuid.UUID, memberID, className string) (*models.WorldFinalsQualification, error) {
	args := m.Called(ctx, seasonID, memberID, className)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorldFinalsQualification), args.Error(1)
}

func (m *MockQualificationRepository) Upsert(ctx context.Context, q *models.WorldFinalsQualification) error {
	args := m.Called(ctx, q)
	return args.Error(0)
}

func seasonResults(seasonID uuid.UUID, memberID, class string, pts ...int) *memoryResults {
	repo := &memoryResults{}
	for _, p := range pts {
		id := seasonID
		repo.results = append(repo.results, &models.CompetitionResult{
			ID:               uuid.New(),
			SeasonID:         &id,
			MemberID:         memberID,
			CompetitionClass: class,
			PointsEarned:     p,
		})
	}
	return repo
}

func TestCheckAndUpdateQualification(t *testing.T) {
	ctx := context.Background()
	seasonID := uuid.New()
	profileID := uuid.New()
	season := &models.Season{ID: seasonID, Name: "2026 Season", QualificationPointsThreshold: intPtr(25)}

	t.Run("creates qualification when threshold met", func(t *testing.T) {
		seasons := new(MockSeasonRepository)
		quals := new(MockQualificationRepository)
		seasons.On("GetByID", ctx, seasonID).Return(season, nil)
		quals.On("Get", ctx, seasonID, "100001", "Street 1").Return(nil, models.ErrNotFound)
		quals.On("Upsert", ctx, mock.MatchedBy(func(q *models.WorldFinalsQualification) bool {
			return q.TotalPoints == 26 && q.CompetitorName == "Dana Lee" && *q.ProfileID == profileID && !q.QualifiedAt.IsZero()
		})).Return(nil)

		svc := NewQualificationService(seasonResults(seasonID, "100001", "Street 1", 10, 8, 8), seasons, quals, logger.NewNopLogger())
		qualified, err := svc.CheckAndUpdateQualification(ctx, "100001", "Dana Lee", &profileID, seasonID, "Street 1")

		require.NoError(t, err)
		assert.True(t, qualified)
		quals.AssertExpectations(t)
	})

	t.Run("updates existing qualification", func(t *testing.T) {
		qualifiedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		existing := &models.WorldFinalsQualification{ID: uuid.New(), SeasonID: seasonID, MemberID: "100001", CompetitionClass: "Street 1", TotalPoints: 25, QualifiedAt: qualifiedAt}
		seasons := new(MockSeasonRepository)
		quals := new(MockQualificationRepository)
		seasons.On("GetByID", ctx, seasonID).Return(season, nil)
		quals.On("Get", ctx, seasonID, "100001", "Street 1").Return(existing, nil)
		quals.On("Upsert", ctx, existing).Return(nil)

		svc := NewQualificationService(seasonResults(seasonID, "100001", "Street 1", 10, 10, 10), seasons, quals, logger.NewNopLogger())
		qualified, err := svc.CheckAndUpdateQualification(ctx, "100001", "Dana Lee", nil, seasonID, "Street 1")

		require.NoError(t, err)
		assert.True(t, qualified)
		assert.Equal(t, 30, existing.TotalPoints)
		assert.Equal(t, qualifiedAt, existing.QualifiedAt)
	})

	t.Run("below threshold", func(t *testing.T) {
		seasons := new(MockSeasonRepository)
		quals := new(MockQualificationRepository)
		seasons.On("GetByID", ctx, seasonID).Return(season, nil)

		svc := NewQualificationService(seasonResults(seasonID, "100001", "Street 1", 10, 8), seasons, quals, logger.NewNopLogger())
		qualified, err := svc.CheckAndUpdateQualification(ctx, "100001", "Dana Lee", nil, seasonID, "Street 1")

		require.NoError(t, err)
		assert.False(t, qualified)
		quals.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("season without threshold", func(t *testing.T) {
		seasons := new(MockSeasonRepository)
		quals := new(MockQualificationRepository)
		seasons.On("GetByID", ctx, seasonID).Return(&models.Season{ID: seasonID}, nil)

		svc := NewQualificationService(seasonResults(seasonID, "100001", "Street 1", 100), seasons, quals, logger.NewNopLogger())
		qualified, err := svc.CheckAndUpdateQualification(ctx, "100001", "Dana Lee", nil, seasonID, "Street 1")

		require.NoError(t, err)
		assert.False(t, qualified)
	})

	t.Run("guest never qualifies", func(t *testing.T) {
		seasons := new(MockSeasonRepository)
		svc := NewQualificationService(&memoryResults{}, seasons, new(MockQualificationRepository), logger.NewNopLogger())

		qualified, err := svc.CheckAndUpdateQualification(ctx, "999999", "Guest", nil, seasonID, "Street 1")
		require.NoError(t, err)
		assert.False(t, qualified)
		seasons.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown season", func(t *testing.T) {
		seasons := new(MockSeasonRepository)
		seasons.On("GetByID", ctx, seasonID).Return(nil, models.ErrNotFound)
		svc := NewQualificationService(&memoryResults{}, seasons, new(MockQualificationRepository), logger.NewNopLogger())

		_, err := svc.CheckAndUpdateQualification(ctx, "100001", "Dana Lee", nil, seasonID, "Street 1")
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})
}
