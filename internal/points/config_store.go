package points

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/metrics"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

const cacheName = "points_config"

// ConfigStore serves per-season points configurations through a TTL cache.
//
// Reads never wait on a load in progress for a cached season. Loads are serialized and
// tagged with the generation they started under; a load that races an invalidation is
// returned to its caller but not cached.
type ConfigStore struct {
	configs  repository.PointsConfigRepository
	seasons  repository.SeasonRepository
	cache    *cache.Cache
	ttl      time.Duration
	validate *validator.Validate
	logger   *logrus.Logger
	audit    *logger.AuditLogger

	loadMu sync.Mutex

	genMu      sync.Mutex
	generation uint64
	seasonGen  map[uuid.UUID]uint64
}

// NewConfigStore creates a new configuration store. audit may be nil.
func NewConfigStore(
	configs repository.PointsConfigRepository,
	seasons repository.SeasonRepository,
	ttl time.Duration,
	log *logrus.Logger,
	audit *logger.AuditLogger,
) *ConfigStore {
	return &ConfigStore{
		configs:   configs,
		seasons:   seasons,
		cache:     cache.New(ttl, ttl*2),
		ttl:       ttl,
		validate:  validator.New(),
		logger:    log,
		audit:     audit,
		seasonGen: make(map[uuid.UUID]uint64),
	}
}

// ForSeason returns the configuration of a season, creating it with default values on first read.
// The returned value is a copy and may be modified by the caller.
func (s *ConfigStore) ForSeason(ctx context.Context, seasonID uuid.UUID) (*models.PointsConfiguration, error) {
	if cfg, ok := s.cached(seasonID); ok {
		metrics.RecordCacheLookup(cacheName, true)
		return cfg, nil
	}
	metrics.RecordCacheLookup(cacheName, false)

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// another caller may have filled the entry while we waited
	if cfg, ok := s.cached(seasonID); ok {
		return cfg, nil
	}

	gen := s.currentGeneration(seasonID)
	cfg, err := s.loadOrCreate(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	if s.currentGeneration(seasonID) == gen {
		s.cache.Set(seasonID.String(), cfg.Clone(), s.ttl)
	}
	return cfg, nil
}

// ForCurrentSeason returns the configuration of the season marked current.
func (s *ConfigStore) ForCurrentSeason(ctx context.Context) (*models.PointsConfiguration, error) {
	season, err := s.seasons.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current season: %w", err)
	}
	return s.ForSeason(ctx, season.ID)
}

// Resolve picks the configuration used to score an event: the event's season, then the
// current season, then the default table. degraded reports that the default table was used.
// Resolve never fails; lookup errors are logged.
func (s *ConfigStore) Resolve(ctx context.Context, seasonID *uuid.UUID) (cfg *models.PointsConfiguration, degraded bool) {
	if seasonID != nil {
		cfg, err := s.ForSeason(ctx, *seasonID)
		if err == nil {
			return cfg, false
		}
		s.logger.WithError(err).WithField("season_id", seasonID.String()).
			Warn("Failed to load season points configuration, trying current season")
	}

	cfg, err := s.ForCurrentSeason(ctx)
	if err == nil {
		return cfg, false
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.WithError(err).Warn("Failed to load current season points configuration")
	}

	metrics.RecordDefaultConfigFallback()
	var id uuid.UUID
	if seasonID != nil {
		id = *seasonID
	}
	return models.DefaultPointsConfiguration(id, ""), true
}

// Update applies input to a season's configuration, persists it and drops the cached entry.
func (s *ConfigStore) Update(ctx context.Context, seasonID uuid.UUID, input *models.PointsConfigurationInput, updatedBy *uuid.UUID) (*models.PointsConfiguration, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	current, err := s.loadOrCreate(ctx, seasonID)
	if err != nil {
		return nil, err
	}
	before := current.Clone()

	input.ApplyTo(current)
	current.UpdatedBy = updatedBy
	current.UpdatedAt = time.Now().UTC()
	if err := s.validate.Struct(current); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	if err := s.configs.Update(ctx, current); err != nil {
		return nil, fmt.Errorf("failed to update points configuration: %w", err)
	}
	s.InvalidateSeason(seasonID)

	if s.audit != nil {
		s.audit.LogPointsConfigChange(seasonID, before, current, updatedBy)
	}
	s.logger.WithField("season_id", seasonID).Info("Updated points configuration")

	return current.Clone(), nil
}

// CalculateForSeason scores a placement with the configuration of the given season.
func (s *ConfigStore) CalculateForSeason(ctx context.Context, placement, multiplier int, seasonID uuid.UUID) (int, error) {
	cfg, err := s.ForSeason(ctx, seasonID)
	if err != nil {
		return 0, err
	}
	return Calculate(placement, multiplier, cfg), nil
}

// InvalidateSeason drops the cached configuration of one season.
func (s *ConfigStore) InvalidateSeason(seasonID uuid.UUID) {
	s.genMu.Lock()
	s.seasonGen[seasonID]++
	s.genMu.Unlock()
	s.cache.Delete(seasonID.String())
}

// InvalidateAll drops every cached configuration.
func (s *ConfigStore) InvalidateAll() {
	s.genMu.Lock()
	s.generation++
	s.genMu.Unlock()
	s.cache.Flush()
}

// CachedSeasons returns the number of live cache entries.
func (s *ConfigStore) CachedSeasons() int {
	return s.cache.ItemCount()
}

func (s *ConfigStore) cached(seasonID uuid.UUID) (*models.PointsConfiguration, bool) {
	v, found := s.cache.Get(seasonID.String())
	if !found {
		return nil, false
	}
	cfg, ok := v.(*models.PointsConfiguration)
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

func (s *ConfigStore) currentGeneration(seasonID uuid.UUID) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generation + s.seasonGen[seasonID]
}

func (s *ConfigStore) loadOrCreate(ctx context.Context, seasonID uuid.UUID) (*models.PointsConfiguration, error) {
	cfg, err := s.configs.GetBySeasonID(ctx, seasonID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to get points configuration: %w", err)
	}

	season, err := s.seasons.GetByID(ctx, seasonID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotFoundError("season", seasonID)
		}
		return nil, fmt.Errorf("failed to get season: %w", err)
	}

	s.logger.WithField("season_id", seasonID).Info("Creating default points configuration")
	cfg = models.DefaultPointsConfiguration(season.ID, season.Name)
	if err := s.configs.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to create default points configuration: %w", err)
	}

	// a concurrent writer may have won the insert
	stored, err := s.configs.GetBySeasonID(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload points configuration: %w", err)
	}
	return stored, nil
}
