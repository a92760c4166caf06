package logger

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PointsLogger provides logging for recalculation passes.
type PointsLogger struct {
	*logrus.Entry
}

// NewPointsLogger creates a new points logger.
func NewPointsLogger(baseLogger *logrus.Logger) *PointsLogger {
	return &PointsLogger{
		Entry: baseLogger.WithField("component", "points"),
	}
}

// LogEventRecalculated logs the outcome of one event pass.
func (pl *PointsLogger) LogEventRecalculated(eventID uuid.UUID, multiplier, groups, resultsUpdated int, durationMs float64) {
	pl.WithFields(logrus.Fields{
		"event_id":        eventID,
		"multiplier":      multiplier,
		"groups":          groups,
		"results_updated": resultsUpdated,
		"duration_ms":     durationMs,
	}).Info("Event points recalculated")
}

// LogDefaultConfigUsed logs a degraded-default fallback.
func (pl *PointsLogger) LogDefaultConfigUsed(eventID uuid.UUID, seasonID *uuid.UUID, reason string) {
	fields := logrus.Fields{
		"event_id": eventID,
		"reason":   reason,
	}
	if seasonID != nil {
		fields["season_id"] = seasonID.String()
	}
	pl.WithFields(fields).Warn("Points configuration unavailable, using default point values")
}

// LogSeasonRecalculated logs a season-wide pass.
func (pl *PointsLogger) LogSeasonRecalculated(seasonID uuid.UUID, eventsProcessed, resultsUpdated, failures int, durationMs int64) {
	pl.WithFields(logrus.Fields{
		"season_id":        seasonID,
		"events_processed": eventsProcessed,
		"results_updated":  resultsUpdated,
		"failures":         failures,
		"duration_ms":      durationMs,
	}).Info("Season points recalculated")
}
