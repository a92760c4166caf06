package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Formats that earn points
const (
	FormatSPL = "SPL"
	FormatSQL = "SQL"
	FormatSSI = "SSI"
	FormatMK  = "MK"
)

var pointsEligibleFormats = map[string]bool{
	FormatSPL: true,
	FormatSQL: true,
	FormatSSI: true,
	FormatMK:  true,
}

// IsPointsEligibleFormat reports whether results in the format are ranked and scored
func IsPointsEligibleFormat(format string) bool {
	return pointsEligibleFormats[strings.ToUpper(strings.TrimSpace(format))]
}

// CompetitionResult is one competitor's entry in one event class
type CompetitionResult struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	EventID          uuid.UUID       `db:"event_id" json:"event_id" validate:"required"`
	SeasonID         *uuid.UUID      `db:"season_id" json:"season_id,omitempty"`
	CompetitorID     *uuid.UUID      `db:"competitor_id" json:"competitor_id,omitempty"`
	CompetitorName   string          `db:"competitor_name" json:"competitor_name" validate:"required"`
	MemberID         string          `db:"meca_id" json:"meca_id"`
	CompetitionClass string          `db:"competition_class" json:"competition_class" validate:"required"`
	ClassID          *uuid.UUID      `db:"class_id" json:"class_id,omitempty"`
	Format           string          `db:"format" json:"format"`
	Score            decimal.Decimal `db:"score" json:"score"`
	Placement        int             `db:"placement" json:"placement"`
	PointsEarned     int             `db:"points_earned" json:"points_earned"`
	Revision         int             `db:"revision_count" json:"revision_count"`
	CreatedBy        *uuid.UUID      `db:"created_by" json:"created_by,omitempty"`
	UpdatedBy        *uuid.UUID      `db:"updated_by" json:"updated_by,omitempty"`
	ModificationNote string          `db:"modification_reason" json:"modification_reason,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`

	// ClassFormat is the format of the linked competition class record, when there is one.
	ClassFormat string `db:"class_format" json:"-"`
	// EventMultiplier is the points multiplier of the result's event as loaded by the repository.
	EventMultiplier int `db:"event_multiplier" json:"-"`
}

// ResolvedFormat prefers the linked class record's format over the free-text format
func (r *CompetitionResult) ResolvedFormat() string {
	if f := strings.TrimSpace(r.ClassFormat); f != "" {
		return strings.ToUpper(f)
	}
	return strings.ToUpper(strings.TrimSpace(r.Format))
}

// HasCompetitor reports whether the result is linked to a profile (not a guest entry)
func (r *CompetitionResult) HasCompetitor() bool {
	return r.CompetitorID != nil && *r.CompetitorID != uuid.Nil
}

// PlacementUpdate is the derived state written back by a recalculation pass
type PlacementUpdate struct {
	ResultID     uuid.UUID `json:"result_id"`
	Placement    int       `json:"placement"`
	PointsEarned int       `json:"points_earned"`
}

// ResultFilter narrows result queries used by backfill and reporting
type ResultFilter struct {
	StartDate      *time.Time
	EndDate        *time.Time
	WithCompetitor bool
}
