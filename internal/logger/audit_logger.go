// Package logger provides audit logging.
package logger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/caraudio-league/points-engine/internal/models"
)

// AuditStore persists audit entries
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, entry *models.ResultAuditEntry) error
}

// AuditLogger provides dedicated audit trail logging.
type AuditLogger struct {
	*logrus.Entry
	store AuditStore
}

// NewAuditLogger creates a new audit logger. store may be nil, in which case entries are only logged.
func NewAuditLogger(baseLogger *logrus.Logger, store AuditStore) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
		store: store,
	}
}

// RecordResultChange logs a result change and persists it. Failures are logged, never returned.
func (al *AuditLogger) RecordResultChange(ctx context.Context, action models.AuditAction, before, after *models.CompetitionResult, actor models.Actor) {
	entry := &models.ResultAuditEntry{
		ID:        uuid.New(),
		Action:    action,
		OldData:   snapshot(before),
		NewData:   snapshot(after),
		UserID:    actor.UserID,
		IPAddress: actor.IPAddress,
		Reason:    actor.Reason,
		CreatedAt: time.Now().UTC(),
	}
	switch {
	case after != nil:
		entry.ResultID, entry.EventID = after.ID, after.EventID
	case before != nil:
		entry.ResultID, entry.EventID = before.ID, before.EventID
	}
	if session, ok := models.EntrySessionFromContext(ctx); ok {
		id := session.ID
		entry.SessionID = &id
	}

	fields := logrus.Fields{
		"action":    action,
		"result_id": entry.ResultID,
		"event_id":  entry.EventID,
		"ip":        actor.IPAddress,
	}
	if actor.UserID != nil {
		fields["user_id"] = actor.UserID.String()
	}
	if actor.Reason != "" {
		fields["reason"] = actor.Reason
	}
	if entry.SessionID != nil {
		fields["session_id"] = entry.SessionID.String()
	}
	al.WithFields(fields).Info("Competition result change recorded")

	if al.store == nil {
		return
	}
	if err := al.store.CreateAuditEntry(ctx, entry); err != nil {
		al.WithError(err).WithField("result_id", entry.ResultID).Error("Failed to persist audit entry")
	}
}

// LogPointsConfigChange logs an admin change to a season's scoring table.
func (al *AuditLogger) LogPointsConfigChange(seasonID uuid.UUID, before, after *models.PointsConfiguration, changedBy *uuid.UUID) {
	fields := logrus.Fields{
		"season_id":  seasonID,
		"old_config": before,
		"new_config": after,
	}
	if changedBy != nil {
		fields["changed_by"] = changedBy.String()
	}
	al.WithFields(fields).Info("Points configuration changed")
}

// LogManualAward logs an admin-issued achievement.
func (al *AuditLogger) LogManualAward(recipient *models.AchievementRecipient, replaced *models.AchievementRecipient, awardedBy *uuid.UUID) {
	fields := logrus.Fields{
		"recipient_id":   recipient.ID,
		"achievement_id": recipient.AchievementID,
		"profile_id":     recipient.ProfileID,
		"achieved_value": recipient.AchievedValue.String(),
	}
	if replaced != nil {
		fields["replaced_recipient_id"] = replaced.ID
	}
	if awardedBy != nil {
		fields["awarded_by"] = awardedBy.String()
	}
	al.WithFields(fields).Info("Manual achievement award recorded")
}

// LogRecipientRemoved logs an admin deleting an award.
func (al *AuditLogger) LogRecipientRemoved(recipient *models.AchievementRecipient, removedBy *uuid.UUID) {
	fields := logrus.Fields{
		"recipient_id":   recipient.ID,
		"achievement_id": recipient.AchievementID,
		"profile_id":     recipient.ProfileID,
	}
	if removedBy != nil {
		fields["removed_by"] = removedBy.String()
	}
	al.WithFields(fields).Warn("Achievement recipient removed")
}

func snapshot(r *models.CompetitionResult) json.RawMessage {
	if r == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return data
}
