package models

import (
	"errors"
	"fmt"
)

// Custom errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("conflicting record")
	ErrIneligible   = errors.New("membership not eligible")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicateKey = errors.New("duplicate key violation")
)

// NotFoundError identifies the missing entity
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Unwrap allows errors.Is(err, ErrNotFound)
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError builds a NotFoundError for the given entity
func NewNotFoundError(entity string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

// ConflictError is returned when an award would duplicate or downgrade an existing one.
// ExistingAchievement and ExistingThreshold are set when a same-group award blocks the request.
type ConflictError struct {
	Reason              string
	ExistingAchievement string
	ExistingThreshold   string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// Unwrap allows errors.Is(err, ErrConflict)
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// IneligibleError carries the reason a membership check failed
type IneligibleError struct {
	MemberID string
	Reason   string
}

func (e *IneligibleError) Error() string {
	if e.MemberID == "" {
		return e.Reason
	}
	return fmt.Sprintf("member %s: %s", e.MemberID, e.Reason)
}

// Unwrap allows errors.Is(err, ErrIneligible)
func (e *IneligibleError) Unwrap() error {
	return ErrIneligible
}
