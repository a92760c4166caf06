package points

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

// MockPointsConfigRepository mocks the points configuration repository
type MockPointsConfigRepository struct {
	mock.Mock
}

func (m *MockPointsConfigRepository) GetBySeasonID(ctx context.Context, seasonID uuid.UUID) (*models.PointsConfiguration, error) {
	args := m.Called(ctx, seasonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PointsConfiguration), args.Error(1)
}

func (m *MockPointsConfigRepository) Create(ctx context.Context, cfg *models.PointsConfiguration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockPointsConfigRepository) Update(ctx context.Context, cfg *models.PointsConfiguration) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

// MockSeasonRepository mocks the season repository
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

func newTestStore(configs *MockPointsConfigRepository, seasons *MockSeasonRepository) *ConfigStore {
	return NewConfigStore(configs, seasons, time.Minute, logger.NewNopLogger(), nil)
}

func TestConfigStore_ForSeasonCachesReads(t *testing.T) {
	ctx := context.Background()
	seasonID := uuid.New()
	stored := models.DefaultPointsConfiguration(seasonID, "2026")
	stored.Standard1stPlace = 7

	configs := new(MockPointsConfigRepository)
	configs.On("GetBySeasonID", ctx, seasonID).Return(stored, nil).Once()
	store := newTestStore(configs, new(MockSeasonRepository))

	first, err := store.ForSeason(ctx, seasonID)
	require.NoError(t, err)
	second, err := store.ForSeason(ctx, seasonID)
	require.NoError(t, err)

	assert.Equal(t, 7, first.Standard1stPlace)
	assert.Equal(t, 7, second.Standard1stPlace)
	configs.AssertNumberOfCalls(t, "GetBySeasonID", 1)

	// callers get copies
	first.Standard1stPlace = 99
	third, err := store.ForSeason(ctx, seasonID)
	require.NoError(t, err)
	assert.Equal(t, 7, third.Standard1stPlace)
}

func TestConfigStore_ForSeasonCreatesDefault(t *testing.T) {
	ctx := context.Background()
	seasonID := uuid.New()
	season := &models.Season{ID: seasonID, Name: "2026 Season"}

	stored := models.DefaultPointsConfiguration(seasonID, season.Name)

	configs := new(MockPointsConfigRepository)
	configs.On("GetBySeasonID", ctx, seasonID).Return(nil, models.ErrNotFound).Once()
	configs.On("Create", ctx, mock.MatchedBy(func(c *models.PointsConfiguration) bool {
		return c.SeasonID == seasonID && c.Description == "Default configuration for 2026 Season"
	})).Return(nil).Once()
	configs.On("GetBySeasonID", ctx, seasonID).Return(stored, nil).Once()

	seasons := new(MockSeasonRepository)
	seasons.On("GetByID", ctx, seasonID).Return(season, nil)

	cfg, err := newTestStore(configs, seasons).ForSeason(ctx, seasonID)
	require.NoError(t, err)

	assert.Equal(t, seasonID, cfg.SeasonID)
	assert.Equal(t, "Default configuration for 2026 Season", cfg.Description)
	assert.Equal(t, models.DefaultStandard1st, cfg.Standard1stPlace)
	assert.Equal(t, models.DefaultFourX5th, cfg.FourX5thPlace)
	assert.False(t, cfg.FourXExtendedEnabled)
	configs.AssertExpectations(t)
}

func TestConfigStore_ForSeasonUnknownSeason(t *testing.T) {
	ctx := context.Background()
	seasonID := uuid.New()

	configs := new(MockPointsConfigRepository)
	configs.On("GetBySeasonID", ctx, seasonID).Return(nil, models.ErrNotFound)
	seasons := new(MockSeasonRepository)
	seasons.On("GetByID", ctx, seasonID).Return(nil, models.ErrNotFound)

	_, err := newTestStore(configs, seasons).ForSeason(ctx, seasonID)

	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotFound)
	var nf *models.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "season", nf.Entity)
	configs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConfigStore_InvalidateSeason(t *testing.T) {
	ctx := context.Background()
	seasonID := uuid.New()
	otherID := uuid.New()

	configs := new(MockPointsConfigRepository)
	configs.On("GetBySeasonID", ctx, seasonID).Return(models.DefaultPointsConfiguration(seasonID, ""), nil)
	configs.On("GetBySeasonID", ctx, otherID).Return(models.DefaultPointsConfiguration(otherID, ""), nil)
	store := newTestStore(configs, new(MockSeasonRepository))

	_, err := store.ForSeason(ctx, seasonID)
	require.NoError(t, err)
	_, err = store.ForSeason(ctx, otherID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.CachedSeasons())

	store.InvalidateSeason(seasonID)
	assert.Equal(t, 1, store.CachedSeasons())

	_, err = store.ForSeason(ctx, seasonID)
	require.NoError(t, err)
	configs.AssertNumberOfCalls(t, "GetBySeasonID", 3)

	store.InvalidateAll()
	assert.Zero(t, store.CachedSeasons())
}

func TestConfigStore_Resolve(t *testing.T) {
	ctx := context.Background()
	seasonID := uuid.New()
	currentID := uuid.New()

	t.Run("event season", func(t *testing.T) {
		configs := new(MockPointsConfigRepository)
		configs.On("GetBySeasonID", ctx, seasonID).Return(models.DefaultPointsConfiguration(seasonID, ""), nil)

		cfg, degraded := newTestStore(configs, new(MockSeasonRepository)).Resolve(ctx, &seasonID)
		assert.False(t, degraded)
		assert.Equal(t, seasonID, cfg.SeasonID)
	})

	t.Run("falls back to current season", func(t *testing.T) {
		configs := new(MockPointsConfigRepository)
		configs.On("GetBySeasonID", ctx, seasonID).Return(nil, errors.New("connection reset"))
		configs.On("GetBySeasonID", ctx, currentID).Return(models.DefaultPointsConfiguration(currentID, ""), nil)
		seasons := new(MockSeasonRepository)
		seasons.On("GetCurrent", ctx).Return(&models.Season{ID: currentID, IsCurrent: true}, nil)

		cfg, degraded := newTestStore(configs, seasons).Resolve(ctx, &seasonID)
		assert.False(t, degraded)
		assert.Equal(t, currentID, cfg.SeasonID)
	})

	t.Run("falls back to defaults without a season", func(t *testing.T) {
		seasons := new(MockSeasonRepository)
		seasons.On("GetCurrent", ctx).Return(nil, models.ErrNotFound)

		cfg, degraded := newTestStore(new(MockPointsConfigRepository), seasons).Resolve(ctx, nil)
		assert.True(t, degraded)
		assert.Equal(t, models.DefaultStandard1st, cfg.Standard1stPlace)
		assert.Equal(t, models.DefaultFourX1st, cfg.FourX1stPlace)
	})
}

func TestConfigStore_Update(t *testing.T) {
	ctx := context.Background()
	seasonID := uuid.New()
	userID := uuid.New()

	t.Run("applies input and invalidates", func(t *testing.T) {
		configs := new(MockPointsConfigRepository)
		configs.On("GetBySeasonID", ctx, seasonID).Return(models.DefaultPointsConfiguration(seasonID, ""), nil)
		configs.On("Update", ctx, mock.MatchedBy(func(c *models.PointsConfiguration) bool {
			return c.Standard1stPlace == 8 && c.FourXExtendedEnabled && c.UpdatedBy != nil && *c.UpdatedBy == userID
		})).Return(nil).Once()
		store := newTestStore(configs, new(MockSeasonRepository))

		_, err := store.ForSeason(ctx, seasonID)
		require.NoError(t, err)
		require.Equal(t, 1, store.CachedSeasons())

		first, enabled := 8, true
		updated, err := store.Update(ctx, seasonID, &models.PointsConfigurationInput{
			Standard1stPlace:     &first,
			FourXExtendedEnabled: &enabled,
		}, &userID)
		require.NoError(t, err)

		assert.Equal(t, 8, updated.Standard1stPlace)
		assert.Equal(t, models.DefaultStandard2nd, updated.Standard2ndPlace)
		assert.Zero(t, store.CachedSeasons())
		configs.AssertExpectations(t)
	})

	t.Run("rejects negative values", func(t *testing.T) {
		configs := new(MockPointsConfigRepository)
		negative := -1

		_, err := newTestStore(configs, new(MockSeasonRepository)).Update(ctx, seasonID,
			&models.PointsConfigurationInput{Standard1stPlace: &negative}, nil)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		configs.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("rejects extended max place out of range", func(t *testing.T) {
		configs := new(MockPointsConfigRepository)
		maxPlace := 101

		_, err := newTestStore(configs, new(MockSeasonRepository)).Update(ctx, seasonID,
			&models.PointsConfigurationInput{FourXExtendedMaxPlace: &maxPlace}, nil)
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})
}

func TestConfigStore_CalculateForSeason(t *testing.T) {
	ctx := context.Background()
	seasonID := uuid.New()

	configs := new(MockPointsConfigRepository)
	configs.On("GetBySeasonID", ctx, seasonID).Return(models.DefaultPointsConfiguration(seasonID, ""), nil)

	pts, err := newTestStore(configs, new(MockSeasonRepository)).CalculateForSeason(ctx, 2, 3, seasonID)
	require.NoError(t, err)
	assert.Equal(t, 12, pts)
}
