package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// EventRecalculator recalculates the placements of one event
type EventRecalculator interface {
	RecalculateEvent(ctx context.Context, eventID uuid.UUID) (*EventRecalculation, error)
}

// ResultService creates, edits and deletes competition results. Every change is audited
// and followed by a recalculation of the affected event.
type ResultService struct {
	results      repository.ResultRepository
	events       repository.EventRepository
	audits       repository.AuditRepository
	recalculator EventRecalculator
	audit        *logger.AuditLogger
	validate     *validator.Validate
	logger       *logrus.Logger
	now          func() time.Time
}

// NewResultService creates a new result service
func NewResultService(
	results repository.ResultRepository,
	events repository.EventRepository,
	audits repository.AuditRepository,
	recalculator EventRecalculator,
	audit *logger.AuditLogger,
	logger *logrus.Logger,
) *ResultService {
	return &ResultService{
		results:      results,
		events:       events,
		audits:       audits,
		recalculator: recalculator,
		audit:        audit,
		validate:     validator.New(),
		logger:       logger,
		now:          time.Now,
	}
}

// StartSession attaches a new entry session for eventID to ctx. Changes made with the
// returned context are grouped under the session in the audit trail.
func (s *ResultService) StartSession(ctx context.Context, eventID uuid.UUID, actor models.Actor) (context.Context, *models.EntrySession) {
	session := models.NewEntrySession(eventID, actor)
	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"event_id":   eventID,
	}).Info("Started result entry session")
	return models.WithEntrySession(ctx, session), session
}

// Create stores a new result and recalculates its event.
func (s *ResultService) Create(ctx context.Context, input *models.ResultInput, actor models.Actor) (*models.CompetitionResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	result, err := input.ToEntity()
	if err != nil {
		return nil, err
	}

	event, err := s.loadEvent(ctx, result.EventID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result.SeasonID = event.SeasonID
	result.CreatedBy = actor.UserID
	result.UpdatedBy = actor.UserID
	result.CreatedAt = now
	result.UpdatedAt = now
	if err := s.validate.Struct(result); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	if err := s.results.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to create result: %w", err)
	}
	if session, ok := models.EntrySessionFromContext(ctx); ok {
		session.Entries++
	}
	s.audit.RecordResultChange(ctx, models.AuditCreate, nil, result, actor)

	s.recalculate(ctx, result.EventID)
	return s.reload(ctx, result)
}

// Update applies input to a result, bumps its revision and recalculates the affected
// events. Moving a result to another event recalculates both.
func (s *ResultService) Update(ctx context.Context, id uuid.UUID, input *models.ResultInput, actor models.Actor) (*models.CompetitionResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	before, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	after := *before
	if err := input.ApplyTo(&after); err != nil {
		return nil, err
	}
	if after.EventID != before.EventID {
		event, err := s.loadEvent(ctx, after.EventID)
		if err != nil {
			return nil, err
		}
		after.SeasonID = event.SeasonID
	}
	after.Revision = before.Revision + 1
	after.UpdatedBy = actor.UserID
	after.UpdatedAt = s.now().UTC()
	if actor.Reason != "" {
		after.ModificationNote = actor.Reason
	}
	if err := s.validate.Struct(&after); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	if err := s.results.Update(ctx, &after); err != nil {
		return nil, fmt.Errorf("failed to update result: %w", err)
	}
	s.audit.RecordResultChange(ctx, models.AuditUpdate, before, &after, actor)

	s.recalculate(ctx, after.EventID)
	if before.EventID != after.EventID {
		s.recalculate(ctx, before.EventID)
	}
	return s.reload(ctx, &after)
}

// Delete removes a result and recalculates its event.
func (s *ResultService) Delete(ctx context.Context, id uuid.UUID, actor models.Actor) error {
	before, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.results.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete result: %w", err)
	}
	s.audit.RecordResultChange(ctx, models.AuditDelete, before, nil, actor)

	s.recalculate(ctx, before.EventID)
	return nil
}

// History lists the audit trail of a result, oldest first.
func (s *ResultService) History(ctx context.Context, id uuid.UUID) ([]*models.ResultAuditEntry, error) {
	entries, err := s.audits.ListByResult(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}

// recalculate refreshes the event's placements. The change that triggered it is already
// saved, so a failure is logged and left for the next pass to repair.
func (s *ResultService) recalculate(ctx context.Context, eventID uuid.UUID) {
	if _, err := s.recalculator.RecalculateEvent(ctx, eventID); err != nil {
		s.logger.WithError(err).WithField("event_id", eventID).Error("Failed to recalculate event after result change")
	}
}

func (s *ResultService) load(ctx context.Context, id uuid.UUID) (*models.CompetitionResult, error) {
	result, err := s.results.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotFoundError("result", id)
		}
		return nil, fmt.Errorf("failed to load result: %w", err)
	}
	return result, nil
}

func (s *ResultService) loadEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewNotFoundError("event", id)
		}
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	return event, nil
}

// reload returns the stored result with its recalculated placement and points, falling
// back to the given copy when it cannot be read.
func (s *ResultService) reload(ctx context.Context, result *models.CompetitionResult) (*models.CompetitionResult, error) {
	fresh, err := s.results.GetByID(ctx, result.ID)
	if err != nil {
		s.logger.WithError(err).WithField("result_id", result.ID).Warn("Failed to reload result after recalculation")
		return result, nil
	}
	return fresh, nil
}
