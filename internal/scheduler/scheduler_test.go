package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/service"
)

type countingGate struct {
	calls int
	err   error
}

func (g *countingGate) Refresh(context.Context) error {
	g.calls++
	return g.err
}

type fixedSeason struct {
	season *models.Season
	err    error
}

func (f fixedSeason) GetCurrent(context.Context) (*models.Season, error) {
	return f.season, f.err
}

type recordingRecalculator struct {
	seasons []uuid.UUID
	err     error
}

func (r *recordingRecalculator) RecalculateSeason(_ context.Context, seasonID uuid.UUID) (*service.SeasonRecalculation, error) {
	r.seasons = append(r.seasons, seasonID)
	if r.err != nil {
		return nil, r.err
	}
	return &service.SeasonRecalculation{EventsProcessed: 3, ResultsUpdated: 40}, nil
}

func TestScheduler_EligibilityRefresh(t *testing.T) {
	s := NewScheduler(logger.NewNopLogger())
	gate := &countingGate{}

	id, err := s.ScheduleEligibilityRefresh(300, gate)
	require.NoError(t, err)

	s.cron.Entry(id).Job.Run()
	assert.Equal(t, 1, gate.calls)

	// failures are logged, the job keeps its schedule
	gate.err = errors.New("membership store unavailable")
	s.cron.Entry(id).Job.Run()
	assert.Equal(t, 2, gate.calls)
	assert.Len(t, s.Entries(), 1)
}

func TestScheduler_SeasonRecalculation(t *testing.T) {
	seasonID := uuid.New()

	t.Run("recalculates current season", func(t *testing.T) {
		s := NewScheduler(logger.NewNopLogger())
		recalc := &recordingRecalculator{}

		id, err := s.ScheduleSeasonRecalculation("0 3 * * *", fixedSeason{season: &models.Season{ID: seasonID}}, recalc)
		require.NoError(t, err)

		s.cron.Entry(id).Job.Run()
		assert.Equal(t, []uuid.UUID{seasonID}, recalc.seasons)
	})

	t.Run("no current season skips", func(t *testing.T) {
		s := NewScheduler(logger.NewNopLogger())
		recalc := &recordingRecalculator{}

		id, err := s.ScheduleSeasonRecalculation("0 3 * * *", fixedSeason{err: models.ErrNotFound}, recalc)
		require.NoError(t, err)

		s.cron.Entry(id).Job.Run()
		assert.Empty(t, recalc.seasons)
	})

	t.Run("invalid expression", func(t *testing.T) {
		s := NewScheduler(logger.NewNopLogger())
		_, err := s.ScheduleSeasonRecalculation("not a schedule", fixedSeason{}, &recordingRecalculator{})
		assert.Error(t, err)
		assert.Empty(t, s.Entries())
	})
}

func TestScheduler_Lifecycle(t *testing.T) {
	s := NewScheduler(logger.NewNopLogger())
	assert.Error(t, s.Start(), "no jobs scheduled")
	assert.True(t, s.GetNextRun().IsZero())

	_, err := s.ScheduleEligibilityRefresh(5, &countingGate{})
	require.NoError(t, err)
	schedule, ok := s.Entries()[0].Schedule.(cron.ConstantDelaySchedule)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, schedule.Delay, "interval is clamped")

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	_, err = s.ScheduleEligibilityRefresh(60, &countingGate{})
	assert.Error(t, err, "cannot schedule while running")

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	require.NoError(t, s.Stop())
}
