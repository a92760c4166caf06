package logger

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AchievementLogger provides logging for award decisions.
type AchievementLogger struct {
	*logrus.Entry
}

// NewAchievementLogger creates a new achievement logger.
func NewAchievementLogger(baseLogger *logrus.Logger) *AchievementLogger {
	return &AchievementLogger{
		Entry: baseLogger.WithField("component", "achievements"),
	}
}

// LogAwarded logs a newly created recipient.
func (al *AchievementLogger) LogAwarded(profileID uuid.UUID, achievementName, group, score, threshold string) {
	al.WithFields(logrus.Fields{
		"profile_id":  profileID,
		"achievement": achievementName,
		"group":       group,
		"score":       score,
		"threshold":   threshold,
	}).Info("Achievement awarded")
}

// LogUpgrade logs the replacement of a lower award within a group.
func (al *AchievementLogger) LogUpgrade(profileID uuid.UUID, group, fromThreshold, toThreshold string) {
	al.WithFields(logrus.Fields{
		"profile_id":     profileID,
		"group":          group,
		"from_threshold": fromThreshold,
		"to_threshold":   toThreshold,
	}).Info("Upgrading achievement within group")
}

// LogSkipped logs a group where the competitor already holds an equal or better award.
func (al *AchievementLogger) LogSkipped(profileID uuid.UUID, group, held, qualifying string) {
	al.WithFields(logrus.Fields{
		"profile_id": profileID,
		"group":      group,
		"held":       held,
		"qualifying": qualifying,
	}).Debug("Achievement already held at same or higher threshold")
}

// LogBackfillProgress logs a backfill checkpoint.
func (al *AchievementLogger) LogBackfillProgress(processed, awarded, total int) {
	al.WithFields(logrus.Fields{
		"processed": processed,
		"awarded":   awarded,
		"total":     total,
	}).Info("Achievement backfill progress")
}
