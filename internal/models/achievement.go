package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetricType is what an achievement threshold is compared against
type MetricType string

const (
	MetricScore  MetricType = "score"
	MetricPoints MetricType = "points"
)

// AchievementType distinguishes rendered-per-value badges from fixed artwork
type AchievementType string

const (
	AchievementDynamic AchievementType = "dynamic"
	AchievementStatic  AchievementType = "static"
)

// ThresholdOperator compares an achieved value to a definition's threshold
type ThresholdOperator string

const (
	OperatorGreaterThan        ThresholdOperator = ">"
	OperatorGreaterThanOrEqual ThresholdOperator = ">="
	OperatorEqual              ThresholdOperator = "="
	OperatorLessThan           ThresholdOperator = "<"
	OperatorLessThanOrEqual    ThresholdOperator = "<="
)

// Evaluate applies the operator to value and threshold
func (op ThresholdOperator) Evaluate(value, threshold decimal.Decimal) bool {
	switch op {
	case OperatorGreaterThan:
		return value.GreaterThan(threshold)
	case OperatorGreaterThanOrEqual:
		return value.GreaterThanOrEqual(threshold)
	case OperatorEqual:
		return value.Equal(threshold)
	case OperatorLessThan:
		return value.LessThan(threshold)
	case OperatorLessThanOrEqual:
		return value.LessThanOrEqual(threshold)
	default:
		return false
	}
}

// Competition types used as group labels and legacy matching keys
const (
	CompetitionCertifiedAtTheHeadrest = "Certified at the Headrest"
	CompetitionRadicalX               = "Radical X"
	CompetitionDuelingDemos           = "Dueling Demos"
	CompetitionCertified360Sound      = "Dueling Demos - Certified 360 Sound"
	CompetitionParkAndPound           = "Park and Pound"
	CompetitionCertifiedSound         = "Certified Sound"
)

// AchievementDefinition describes a qualifying threshold and how it renders
type AchievementDefinition struct {
	ID                uuid.UUID         `db:"id" json:"id"`
	Name              string            `db:"name" json:"name" validate:"required,max=255"`
	Description       string            `db:"description" json:"description,omitempty"`
	GroupName         string            `db:"group_name" json:"group_name,omitempty"`
	AchievementType   AchievementType   `db:"achievement_type" json:"achievement_type" validate:"oneof=dynamic static"`
	TemplateKey       string            `db:"template_key" json:"template_key" validate:"required"`
	RenderValue       *decimal.Decimal  `db:"render_value" json:"render_value,omitempty"`
	Format            string            `db:"format" json:"format,omitempty"`
	CompetitionType   string            `db:"competition_type" json:"competition_type" validate:"required"`
	MetricType        MetricType        `db:"metric_type" json:"metric_type" validate:"oneof=score points"`
	ThresholdValue    decimal.Decimal   `db:"threshold_value" json:"threshold_value"`
	ThresholdOperator ThresholdOperator `db:"threshold_operator" json:"threshold_operator" validate:"oneof=> >= = < <="`
	ClassFilter       []string          `db:"class_filter" json:"class_filter,omitempty"`
	DivisionFilter    []string          `db:"division_filter" json:"division_filter,omitempty"`
	PointsMultiplier  *int              `db:"points_multiplier" json:"points_multiplier,omitempty"`
	IsActive          bool              `db:"is_active" json:"is_active"`
	DisplayOrder      int               `db:"display_order" json:"display_order"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// GroupKey is the mutual-exclusion key: the group name, else the competition type
func (d *AchievementDefinition) GroupKey() string {
	if g := strings.TrimSpace(d.GroupName); g != "" {
		return g
	}
	return d.CompetitionType
}

// DisplayValue is the value rendered on the badge
func (d *AchievementDefinition) DisplayValue() decimal.Decimal {
	if d.RenderValue != nil {
		return *d.RenderValue
	}
	return d.ThresholdValue
}

// ApplyDefaults fills optional fields the way newly created definitions expect
func (d *AchievementDefinition) ApplyDefaults() {
	if d.AchievementType == "" {
		d.AchievementType = AchievementDynamic
	}
	if d.ThresholdOperator == "" {
		d.ThresholdOperator = OperatorGreaterThanOrEqual
	}
	if d.MetricType == "" {
		d.MetricType = MetricScore
	}
	if d.RenderValue == nil {
		rv := d.ThresholdValue
		if d.MetricType == MetricScore {
			rv = rv.Floor()
		}
		d.RenderValue = &rv
	}
}

// AchievementRecipient is one award of a definition to a profile
type AchievementRecipient struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	AchievementID       uuid.UUID       `db:"achievement_id" json:"achievement_id"`
	ProfileID           uuid.UUID       `db:"profile_id" json:"profile_id"`
	MemberID            string          `db:"meca_id" json:"meca_id,omitempty"`
	AchievedValue       decimal.Decimal `db:"achieved_value" json:"achieved_value"`
	AchievedAt          time.Time       `db:"achieved_at" json:"achieved_at"`
	CompetitionResultID *uuid.UUID      `db:"competition_result_id" json:"competition_result_id,omitempty"`
	EventID             *uuid.UUID      `db:"event_id" json:"event_id,omitempty"`
	SeasonID            *uuid.UUID      `db:"season_id" json:"season_id,omitempty"`
	ImageURL            string          `db:"image_url" json:"image_url,omitempty"`
	ImageGeneratedAt    *time.Time      `db:"image_generated_at" json:"image_generated_at,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`

	// Achievement is populated by queries that join the definition.
	Achievement *AchievementDefinition `json:"achievement,omitempty"`
}

// RecipientFilter narrows the admin recipient listing. Zero fields do not filter.
type RecipientFilter struct {
	AchievementID *uuid.UUID `json:"achievement_id,omitempty"`
	ProfileID     *uuid.UUID `json:"profile_id,omitempty"`
	MemberID      string     `json:"meca_id,omitempty"`
	SeasonID      *uuid.UUID `json:"season_id,omitempty"`
	// Search matches the member id or the competitor's first or last name, case-insensitively.
	Search        string     `json:"search,omitempty"`
}

// RecipientPage is one page of recipients, newest award first
type RecipientPage struct {
	Items      []*AchievementRecipient `json:"items"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
	TotalPages int                     `json:"total_pages"`
}

// MemberAchievement is the listing row shown on a profile
type MemberAchievement struct {
	RecipientID    uuid.UUID       `json:"id"`
	AchievementID  uuid.UUID       `json:"achievement_id"`
	Name           string          `json:"achievement_name"`
	Description    string          `json:"achievement_description,omitempty"`
	GroupName      string          `json:"group_name,omitempty"`
	AchievedValue  decimal.Decimal `json:"achieved_value"`
	AchievedAt     time.Time       `json:"achieved_at"`
	ImageURL       string          `json:"image_url,omitempty"`
	EventID        *uuid.UUID      `json:"event_id,omitempty"`
	CompetitionKey string          `json:"competition_type"`
}

// NewMemberAchievement flattens a recipient with its joined definition
func NewMemberAchievement(r *AchievementRecipient) MemberAchievement {
	m := MemberAchievement{
		RecipientID:   r.ID,
		AchievementID: r.AchievementID,
		AchievedValue: r.AchievedValue,
		AchievedAt:    r.AchievedAt,
		ImageURL:      r.ImageURL,
		EventID:       r.EventID,
	}
	if r.Achievement != nil {
		m.Name = r.Achievement.Name
		m.Description = r.Achievement.Description
		m.GroupName = r.Achievement.GroupName
		m.CompetitionKey = r.Achievement.CompetitionType
	}
	return m
}

// BadgeRequest asks the image service to render one recipient's badge
type BadgeRequest struct {
	RecipientID     uuid.UUID `json:"recipient_id"`
	TemplateKey     string    `json:"template_key"`
	Value           string    `json:"value"`
	AchievementName string    `json:"achievement_name"`
	Static          bool      `json:"static"`
}

// NewBadgeRequest builds the render request for a recipient of def
func NewBadgeRequest(r *AchievementRecipient, def *AchievementDefinition) BadgeRequest {
	return BadgeRequest{
		RecipientID:     r.ID,
		TemplateKey:     def.TemplateKey,
		Value:           def.DisplayValue().String(),
		AchievementName: def.Name,
		Static:          def.AchievementType == AchievementStatic,
	}
}
