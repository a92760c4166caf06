// Package scheduler runs the engine's periodic jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/service"
)

// EligibilityRefresher reloads the eligible member set
type EligibilityRefresher interface {
	Refresh(ctx context.Context) error
}

// SeasonRecalculator recalculates every event of a season
type SeasonRecalculator interface {
	RecalculateSeason(ctx context.Context, seasonID uuid.UUID) (*service.SeasonRecalculation, error)
}

// CurrentSeason finds the season marked current
type CurrentSeason interface {
	GetCurrent(ctx context.Context) (*models.Season, error)
}

// Scheduler manages the engine's background jobs
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleEligibilityRefresh reloads the eligible member set every intervalSeconds so
// that lapsed memberships stop earning points without waiting for a recalculation.
func (s *Scheduler) ScheduleEligibilityRefresh(intervalSeconds int, gate EligibilityRefresher) (cron.EntryID, error) {
	if intervalSeconds < 30 {
		intervalSeconds = 30
	}

	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(intervalSeconds-1)*time.Second)
		defer cancel()

		if err := gate.Refresh(ctx); err != nil {
			s.logger.WithError(err).Warn("Scheduled eligibility refresh failed")
		}
	}

	return s.add(fmt.Sprintf("@every %ds", intervalSeconds), "eligibility_refresh", job)
}

// ScheduleSeasonRecalculation recalculates the current season on cronExpression
func (s *Scheduler) ScheduleSeasonRecalculation(cronExpression string, seasons CurrentSeason, recalculator SeasonRecalculator) (cron.EntryID, error) {
	job := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
		defer cancel()

		season, err := seasons.GetCurrent(ctx)
		if err != nil {
			s.logger.WithError(err).Warn("Scheduled season recalculation skipped, no current season")
			return
		}

		summary, err := recalculator.RecalculateSeason(ctx, season.ID)
		if err != nil {
			s.logger.WithError(err).WithField("season_id", season.ID).Error("Scheduled season recalculation failed")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"season_id":        season.ID,
			"events_processed": summary.EventsProcessed,
			"results_updated":  summary.ResultsUpdated,
			"failures":         summary.Failures,
		}).Info("Scheduled season recalculation completed")
	}

	return s.add(cronExpression, "season_recalculation", job)
}

func (s *Scheduler) add(spec, name string, job func()) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return 0, fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return 0, fmt.Errorf("failed to add %s job: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{"job": name, "schedule": spec}).Info("Scheduled job")
	return entryID, nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop waits for running jobs to finish, up to the graceful timeout
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.isRunning = false
	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler jobs still running after %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			nextTime := entry.Next
			if nextRun.IsZero() || nextTime.Before(nextRun) {
				nextRun = nextTime
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}
