package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction is the kind of change recorded for a result
type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// ResultAuditEntry is an append-only record of a change to a competition result
type ResultAuditEntry struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	SessionID *uuid.UUID      `db:"session_id" json:"session_id,omitempty"`
	Action    AuditAction     `db:"action" json:"action"`
	ResultID  uuid.UUID       `db:"result_id" json:"result_id"`
	EventID   uuid.UUID       `db:"event_id" json:"event_id"`
	OldData   json.RawMessage `db:"old_data" json:"old_data,omitempty"`
	NewData   json.RawMessage `db:"new_data" json:"new_data,omitempty"`
	UserID    *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	IPAddress string          `db:"ip_address" json:"ip_address,omitempty"`
	Reason    string          `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Actor identifies who triggered a change
type Actor struct {
	UserID    *uuid.UUID
	IPAddress string
	Reason    string
}

// EntrySession groups the manual result entries an admin makes in one sitting.
// It lives on the request context rather than in process memory.
type EntrySession struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	Actor     Actor
	StartedAt time.Time
	Entries   int
}

// NewEntrySession starts a session for an event
func NewEntrySession(eventID uuid.UUID, actor Actor) *EntrySession {
	return &EntrySession{
		ID:        uuid.New(),
		EventID:   eventID,
		Actor:     actor,
		StartedAt: time.Now().UTC(),
	}
}

type entrySessionKey struct{}

// WithEntrySession attaches a session to ctx
func WithEntrySession(ctx context.Context, s *EntrySession) context.Context {
	return context.WithValue(ctx, entrySessionKey{}, s)
}

// EntrySessionFromContext returns the session on ctx, if any
func EntrySessionFromContext(ctx context.Context) (*EntrySession, bool) {
	s, ok := ctx.Value(entrySessionKey{}).(*EntrySession)
	return s, ok && s != nil
}
