package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultEventMultiplier applies when an event has no multiplier set
const DefaultEventMultiplier = 2

// Event is a single competition day
type Event struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Title            string     `db:"title" json:"title"`
	EventDate        time.Time  `db:"event_date" json:"event_date"`
	SeasonID         *uuid.UUID `db:"season_id" json:"season_id,omitempty"`
	PointsMultiplier *int       `db:"points_multiplier" json:"points_multiplier,omitempty"`

	Season *Season `json:"season,omitempty"`
}

// Multiplier returns the effective multiplier
func (e *Event) Multiplier() int {
	if e.PointsMultiplier == nil {
		return DefaultEventMultiplier
	}
	return *e.PointsMultiplier
}

// Season groups events for standings
type Season struct {
	ID                           uuid.UUID `db:"id" json:"id"`
	Name                         string    `db:"name" json:"name"`
	Year                         int       `db:"year" json:"year"`
	StartDate                    time.Time `db:"start_date" json:"start_date"`
	EndDate                      time.Time `db:"end_date" json:"end_date"`
	IsCurrent                    bool      `db:"is_current" json:"is_current"`
	QualificationPointsThreshold *int      `db:"qualification_points_threshold" json:"qualification_points_threshold,omitempty"`
}

// Profile is a registered competitor
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MemberID  string    `db:"meca_id" json:"meca_id,omitempty"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
}

// DisplayName is "First Last", falling back to the email
func (p *Profile) DisplayName() string {
	name := p.FirstName
	if p.LastName != "" {
		if name != "" {
			name += " "
		}
		name += p.LastName
	}
	if name == "" {
		return p.Email
	}
	return name
}

// WorldFinalsQualification records a competitor crossing a season's class threshold
type WorldFinalsQualification struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	SeasonID         uuid.UUID  `db:"season_id" json:"season_id"`
	MemberID         string     `db:"meca_id" json:"meca_id"`
	CompetitorName   string     `db:"competitor_name" json:"competitor_name"`
	ProfileID        *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	CompetitionClass string     `db:"competition_class" json:"competition_class"`
	TotalPoints      int        `db:"total_points" json:"total_points"`
	QualifiedAt      time.Time  `db:"qualified_at" json:"qualified_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
