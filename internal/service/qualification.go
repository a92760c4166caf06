package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/eligibility"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// QualificationService tracks competitors whose season class points reach the season's
// world finals threshold.
type QualificationService struct {
	results        repository.ResultRepository
	seasons        repository.SeasonRepository
	qualifications repository.QualificationRepository
	logger         *logrus.Logger
	now            func() time.Time
}

// NewQualificationService creates a new qualification service
func NewQualificationService(
	results repository.ResultRepository,
	seasons repository.SeasonRepository,
	qualifications repository.QualificationRepository,
	logger *logrus.Logger,
) *QualificationService {
	return &QualificationService{
		results:        results,
		seasons:        seasons,
		qualifications: qualifications,
		logger:         logger,
		now:            time.Now,
	}
}

// CheckAndUpdateQualification sums the member's season points in a class and records the
// qualification when the total meets the season threshold. It reports whether the member
// is qualified. Seasons without a threshold qualify nobody.
func (s *QualificationService) CheckAndUpdateQualification(ctx context.Context, memberID, name string, profileID *uuid.UUID, seasonID uuid.UUID, className string) (bool, error) {
	if eligibility.IsGuestID(memberID) {
		return false, nil
	}

	season, err := s.seasons.GetByID(ctx, seasonID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, models.NewNotFoundError("season", seasonID)
		}
		return false, fmt.Errorf("failed to load season: %w", err)
	}
	if season.QualificationPointsThreshold == nil || *season.QualificationPointsThreshold <= 0 {
		return false, nil
	}

	total, err := s.results.SumSeasonClassPoints(ctx, seasonID, memberID, className)
	if err != nil {
		return false, err
	}
	if total < *season.QualificationPointsThreshold {
		return false, nil
	}

	now := s.now().UTC()
	q, err := s.qualifications.Get(ctx, seasonID, memberID, className)
	switch {
	case errors.Is(err, models.ErrNotFound):
		q = &models.WorldFinalsQualification{
			ID:               uuid.New(),
			SeasonID:         seasonID,
			MemberID:         memberID,
			CompetitionClass: className,
			QualifiedAt:      now,
		}
		s.logger.WithFields(logrus.Fields{
			"meca_id":      memberID,
			"season_id":    seasonID,
			"class":        className,
			"total_points": total,
			"threshold":    *season.QualificationPointsThreshold,
		}).Info("Competitor qualified for world finals")
	case err != nil:
		return false, fmt.Errorf("failed to load qualification: %w", err)
	}

	q.CompetitorName = name
	if profileID != nil {
		id := *profileID
		q.ProfileID = &id
	}
	q.TotalPoints = total
	q.UpdatedAt = now

	if err := s.qualifications.Upsert(ctx, q); err != nil {
		return false, fmt.Errorf("failed to save qualification: %w", err)
	}
	return true, nil
}
