package achievements

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/logger"
	"github.com/caraudio-league/points-engine/internal/metrics"
	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/repository"
)

// DefaultProgressEvery is the streaming cadence when none is configured
const DefaultProgressEvery = 10

// Refresher reloads a cached eligibility set
type Refresher interface {
	Refresh(ctx context.Context) error
}

// BackfillOptions narrows a backfill run
type BackfillOptions struct {
	StartDate      *time.Time
	EndDate        *time.Time
	GenerateImages bool
}

// BackfillSummary is the outcome of a finished run
type BackfillSummary struct {
	Processed int         `json:"processed"`
	Awarded   int         `json:"awarded"`
	Total     int         `json:"total"`
	Errors    int         `json:"errors"`
	Images    ImageReport `json:"images"`
}

// BackfillProgress is one streamed checkpoint
type BackfillProgress struct {
	Processed  int    `json:"processed"`
	Awarded    int    `json:"awarded"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Done       bool   `json:"done"`
	Error      string `json:"error,omitempty"`
}

// Backfill replays automatic awarding over historical results.
type Backfill struct {
	results       repository.ResultRepository
	awarder       *Awarder
	eligibility   Refresher
	progressEvery int
	logger        *logrus.Logger
	achLog        *logger.AchievementLogger
}

// NewBackfill creates a new backfill orchestrator. eligibility may be nil.
func NewBackfill(results repository.ResultRepository, awarder *Awarder, eligibility Refresher, progressEvery int, log *logrus.Logger) *Backfill {
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}
	return &Backfill{
		results:       results,
		awarder:       awarder,
		eligibility:   eligibility,
		progressEvery: progressEvery,
		logger:        log,
		achLog:        logger.NewAchievementLogger(log),
	}
}

// Run processes every matching result and returns the final counts.
func (b *Backfill) Run(ctx context.Context, opts BackfillOptions) (*BackfillSummary, error) {
	return b.run(ctx, opts, nil)
}

// Stream runs the backfill in the background and sends a checkpoint at 0%, after every
// progressEvery results and a final one with Done set. The channel is closed when the run
// ends. Cancelling ctx stops the run after the result in progress; every result that was
// processed keeps its awards.
//
// The producer blocks until each checkpoint is received, so a caller that stops reading
// before the channel is closed must cancel ctx or the run never finishes.
func (b *Backfill) Stream(ctx context.Context, opts BackfillOptions) <-chan BackfillProgress {
	out := make(chan BackfillProgress, 1)

	go func() {
		defer close(out)

		send := func(p BackfillProgress) bool {
			select {
			case out <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}

		summary, err := b.run(ctx, opts, send)
		if err != nil {
			if ctx.Err() == nil {
				send(BackfillProgress{Done: true, Error: err.Error()})
			}
			return
		}
		send(BackfillProgress{
			Processed:  summary.Processed,
			Awarded:    summary.Awarded,
			Total:      summary.Total,
			Percentage: 100,
			Done:       true,
		})
	}()

	return out
}

func (b *Backfill) run(ctx context.Context, opts BackfillOptions, emit func(BackfillProgress) bool) (*BackfillSummary, error) {
	start := time.Now()
	b.logger.WithFields(logrus.Fields{
		"start_date": opts.StartDate,
		"end_date":   opts.EndDate,
	}).Info("Starting achievement backfill")

	if b.eligibility != nil {
		if err := b.eligibility.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("failed to refresh eligibility: %w", err)
		}
	}

	results, err := b.results.ListForBackfill(ctx, models.ResultFilter{
		StartDate:      opts.StartDate,
		EndDate:        opts.EndDate,
		WithCompetitor: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	summary := &BackfillSummary{Total: len(results)}
	if emit != nil && !emit(BackfillProgress{Total: summary.Total}) {
		return nil, ctx.Err()
	}

	for _, result := range results {
		if err := ctx.Err(); err != nil {
			b.logger.WithField("processed", summary.Processed).Warn("Achievement backfill cancelled")
			return nil, err
		}

		awarded, err := b.awarder.award(ctx, result, SourceBackfill)
		summary.Processed++
		summary.Awarded += len(awarded)
		if err != nil {
			summary.Errors++
			b.logger.WithError(err).WithField("result_id", result.ID).Error("Achievement check failed during backfill")
		}

		metrics.UpdateBackfillProgress(ratio(summary.Processed, summary.Total))
		if summary.Processed%b.progressEvery != 0 || summary.Processed == summary.Total {
			continue
		}
		b.achLog.LogBackfillProgress(summary.Processed, summary.Awarded, summary.Total)
		if emit != nil && !emit(BackfillProgress{
			Processed:  summary.Processed,
			Awarded:    summary.Awarded,
			Total:      summary.Total,
			Percentage: percentage(summary.Processed, summary.Total),
		}) {
			return nil, ctx.Err()
		}
	}

	if opts.GenerateImages {
		report, err := b.awarder.images.GenerateMissing(ctx)
		if err != nil {
			b.logger.WithError(err).Warn("Badge image generation after backfill failed")
		}
		summary.Images = report
	}

	metrics.RecordBackfillDuration(time.Since(start).Seconds())
	b.logger.WithFields(logrus.Fields{
		"processed":        summary.Processed,
		"awarded":          summary.Awarded,
		"errors":           summary.Errors,
		"images_generated": summary.Images.Generated,
		"images_failed":    summary.Images.Failed,
		"duration_ms":      time.Since(start).Milliseconds(),
	}).Info("Achievement backfill complete")

	return summary, nil
}

func ratio(processed, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(processed) / float64(total)
}

func percentage(processed, total int) int {
	return int(math.Round(ratio(processed, total) * 100))
}
