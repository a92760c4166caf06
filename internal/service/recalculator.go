// Package service orchestrates points recalculation and result maintenance.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/database"
	"github.com/caraudio-league/points-engine/internal/eligibility"
	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/metrics"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// ConfigSource resolves and updates season points configurations
type ConfigSource interface {
	Resolve(ctx context.Context, seasonID *uuid.UUID) (*models.PointsConfiguration, bool)
	Update(ctx context.Context, seasonID uuid.UUID, input *models.PointsConfigurationInput, updatedBy *uuid.UUID) (*models.PointsConfiguration, error)
}

// EligibilityGate is the cached membership check used while ranking
type EligibilityGate interface {
	IsEligible(ctx context.Context, memberID string) (bool, error)
	Refresh(ctx context.Context) error
}

// AchievementChecker awards achievements for a single result
type AchievementChecker interface {
	CheckAndAward(ctx context.Context, result *models.CompetitionResult) ([]*models.AchievementRecipient, error)
}

// QualificationChecker updates world finals qualification for one competitor and class
type QualificationChecker interface {
	CheckAndUpdateQualification(ctx context.Context, memberID, name string, profileID *uuid.UUID, seasonID uuid.UUID, className string) (bool, error)
}

// EventRecalculation is the outcome of one event pass
type EventRecalculation struct {
	EventID             uuid.UUID                `json:"event_id"`
	Multiplier          int                      `json:"multiplier"`
	Groups              int                      `json:"groups"`
	ResultsUpdated      int                      `json:"results_updated"`
	AchievementsAwarded int                      `json:"achievements_awarded"`
	AchievementFailures int                      `json:"achievement_failures"`
	DefaultConfig       bool                     `json:"default_config"`
	Updates             []models.PlacementUpdate `json:"-"`
}

// SeasonRecalculation summarizes a season-wide pass
type SeasonRecalculation struct {
	EventsProcessed int   `json:"events_processed"`
	ResultsUpdated  int   `json:"results_updated"`
	Failures        int   `json:"failures"`
	DurationMs      int64 `json:"duration_ms"`
}

// BulkRecalculation summarizes a pass over every event with results
type BulkRecalculation struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
}

// PointsRecalculator ranks event results, assigns points and triggers the downstream
// qualification and achievement checks.
type PointsRecalculator struct {
	events        repository.EventRepository
	results       repository.ResultRepository
	configs       ConfigSource
	gate          EligibilityGate
	achievements  AchievementChecker
	qualification QualificationChecker
	tx            database.Transactor
	logger        *logrus.Logger
	pointsLog     *logger.PointsLogger
}

// NewPointsRecalculator creates a new recalculator. achievements and qualification may be nil.
func NewPointsRecalculator(
	events repository.EventRepository,
	results repository.ResultRepository,
	configs ConfigSource,
	gate EligibilityGate,
	achievements AchievementChecker,
	qualification QualificationChecker,
	tx database.Transactor,
	log *logrus.Logger,
) *PointsRecalculator {
	return &PointsRecalculator{
		events:        events,
		results:       results,
		configs:       configs,
		gate:          gate,
		achievements:  achievements,
		qualification: qualification,
		tx:            tx,
		logger:        log,
		pointsLog:     logger.NewPointsLogger(log),
	}
}

// RecalculateEvent refreshes eligibility and recalculates one event.
func (s *PointsRecalculator) RecalculateEvent(ctx context.Context, eventID uuid.UUID) (*EventRecalculation, error) {
	s.refreshEligibility(ctx)
	return s.recalculateEvent(ctx, eventID)
}

// RecalculateSeason recalculates every event of a season. A failing event is logged and
// counted; the remaining events are still processed.
func (s *PointsRecalculator) RecalculateSeason(ctx context.Context, seasonID uuid.UUID) (*SeasonRecalculation, error) {
	start := time.Now()
	events, err := s.events.ListBySeason(ctx, seasonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list season events: %w", err)
	}

	s.refreshEligibility(ctx)

	summary := &SeasonRecalculation{}
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := s.recalculateEvent(ctx, event.ID)
		if err != nil {
			summary.Failures++
			s.logger.WithError(err).WithField("event_id", event.ID).Error("Failed to recalculate event")
			continue
		}
		summary.EventsProcessed++
		summary.ResultsUpdated += out.ResultsUpdated
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	s.pointsLog.LogSeasonRecalculated(seasonID, summary.EventsProcessed, summary.ResultsUpdated, summary.Failures, summary.DurationMs)
	return summary, nil
}

// RecalculateAll recalculates every event that has results.
func (s *PointsRecalculator) RecalculateAll(ctx context.Context) (*BulkRecalculation, error) {
	events, err := s.events.ListWithResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	s.refreshEligibility(ctx)

	summary := &BulkRecalculation{}
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.recalculateEvent(ctx, event.ID); err != nil {
			summary.Errors++
			s.logger.WithError(err).WithField("event_id", event.ID).Error("Failed to recalculate event")
			continue
		}
		summary.Processed++
	}

	s.logger.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"errors":    summary.Errors,
	}).Info("Recalculated all events")
	return summary, nil
}

// UpdateConfigAndRecalculate stores a season's new points configuration and recalculates
// the season with it.
func (s *PointsRecalculator) UpdateConfigAndRecalculate(ctx context.Context, seasonID uuid.UUID, input *models.PointsConfigurationInput, updatedBy *uuid.UUID) (*models.PointsConfiguration, *SeasonRecalculation, error) {
	cfg, err := s.configs.Update(ctx, seasonID, input, updatedBy)
	if err != nil {
		return nil, nil, err
	}
	summary, err := s.RecalculateSeason(ctx, seasonID)
	if err != nil {
		return cfg, nil, fmt.Errorf("configuration saved but recalculation failed: %w", err)
	}
	return cfg, summary, nil
}

func (s *PointsRecalculator) recalculateEvent(ctx context.Context, eventID uuid.UUID) (*EventRecalculation, error) {
	start := time.Now()
	out, err := s.runEvent(ctx, eventID)
	if err != nil {
		metrics.RecordEventRecalculation("failed", time.Since(start).Seconds(), 0)
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.RecordEventRecalculation("success", elapsed.Seconds(), out.ResultsUpdated)
	s.pointsLog.LogEventRecalculated(eventID, out.Multiplier, out.Groups, out.ResultsUpdated, float64(elapsed.Microseconds())/1000)
	return out, nil
}

func (s *PointsRecalculator) runEvent(ctx context.Context, eventID uuid.UUID) (*EventRecalculation, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotFoundError("event", eventID)
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	out := &EventRecalculation{EventID: event.ID, Multiplier: event.Multiplier()}

	cfg, degraded := s.configs.Resolve(ctx, event.SeasonID)
	if degraded {
		out.DefaultConfig = true
		s.pointsLog.LogDefaultConfigUsed(event.ID, event.SeasonID, "no configuration for event season or current season")
	}

	// read, rank and persist as one unit so a result added meanwhile waits for this pass
	var (
		results []*models.CompetitionResult
		updates []models.PlacementUpdate
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		loaded, err := s.results.LockByEventID(ctx, event.ID)
		if err != nil {
			return fmt.Errorf("failed to load event results: %w", err)
		}
		if len(loaded) == 0 {
			return nil
		}

		ranked, groups, err := rankEvent(ctx, loaded, out.Multiplier, cfg, s.gate.IsEligible)
		if err != nil {
			return err
		}
		if err := s.results.UpdatePlacements(ctx, ranked); err != nil {
			return fmt.Errorf("failed to persist placements: %w", err)
		}
		results, updates, out.Groups = loaded, ranked, groups
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return out, nil
	}
	out.Updates = updates
	out.ResultsUpdated = len(updates)

	applyUpdates(results, updates, event)

	s.checkQualifications(ctx, event, results)
	s.checkAchievements(ctx, results, out)
	return out, nil
}

// applyUpdates copies the persisted placement and points onto the loaded results so the
// downstream checks see the new values.
func applyUpdates(results []*models.CompetitionResult, updates []models.PlacementUpdate, event *models.Event) {
	byID := make(map[uuid.UUID]models.PlacementUpdate, len(updates))
	for _, u := range updates {
		byID[u.ResultID] = u
	}
	for _, r := range results {
		if u, ok := byID[r.ID]; ok {
			r.Placement = u.Placement
			r.PointsEarned = u.PointsEarned
		}
		r.EventMultiplier = event.Multiplier()
		if r.SeasonID == nil && event.SeasonID != nil {
			id := *event.SeasonID
			r.SeasonID = &id
		}
	}
}

type qualificationKey struct {
	memberID string
	class    string
}

func (s *PointsRecalculator) checkQualifications(ctx context.Context, event *models.Event, results []*models.CompetitionResult) {
	if s.qualification == nil || event.SeasonID == nil {
		return
	}

	seen := make(map[qualificationKey]struct{})
	for _, r := range results {
		if eligibility.IsGuestID(r.MemberID) {
			continue
		}
		key := qualificationKey{memberID: r.MemberID, class: r.CompetitionClass}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if _, err := s.qualification.CheckAndUpdateQualification(ctx, r.MemberID, r.CompetitorName, r.CompetitorID, *event.SeasonID, r.CompetitionClass); err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"event_id": event.ID,
				"meca_id":  r.MemberID,
				"class":    r.CompetitionClass,
			}).Warn("World finals qualification check failed")
		}
	}
}

func (s *PointsRecalculator) checkAchievements(ctx context.Context, results []*models.CompetitionResult, out *EventRecalculation) {
	if s.achievements == nil {
		return
	}

	for _, r := range results {
		if !r.HasCompetitor() {
			continue
		}
		awarded, err := s.achievements.CheckAndAward(ctx, r)
		out.AchievementsAwarded += len(awarded)
		if err != nil {
			out.AchievementFailures++
			metrics.RecordAchievementCheckFailure()
			s.logger.WithError(err).WithFields(logrus.Fields{
				"event_id":  r.EventID,
				"result_id": r.ID,
			}).Error("Achievement check failed")
		}
	}
}

func (s *PointsRecalculator) refreshEligibility(ctx context.Context) {
	if err := s.gate.Refresh(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to refresh eligibility, using cached members")
	}
}
