package models

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PointsConfigurationInput is the wire shape of a points configuration update.
// Nil fields are left unchanged.
type PointsConfigurationInput struct {
	Standard1stPlace *int `json:"standard_1st_place" validate:"omitempty,gte=0"`
	Standard2ndPlace *int `json:"standard_2nd_place" validate:"omitempty,gte=0"`
	Standard3rdPlace *int `json:"standard_3rd_place" validate:"omitempty,gte=0"`
	Standard4thPlace *int `json:"standard_4th_place" validate:"omitempty,gte=0"`
	Standard5thPlace *int `json:"standard_5th_place" validate:"omitempty,gte=0"`

	FourX1stPlace *int `json:"four_x_1st_place" validate:"omitempty,gte=0"`
	FourX2ndPlace *int `json:"four_x_2nd_place" validate:"omitempty,gte=0"`
	FourX3rdPlace *int `json:"four_x_3rd_place" validate:"omitempty,gte=0"`
	FourX4thPlace *int `json:"four_x_4th_place" validate:"omitempty,gte=0"`
	FourX5thPlace *int `json:"four_x_5th_place" validate:"omitempty,gte=0"`

	FourXExtendedEnabled  *bool `json:"four_x_extended_enabled"`
	FourXExtendedPoints   *int  `json:"four_x_extended_points" validate:"omitempty,gte=0"`
	FourXExtendedMaxPlace *int  `json:"four_x_extended_max_place" validate:"omitempty,gte=6,lte=100"`

	IsActive    *bool   `json:"is_active"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// ApplyTo copies every set field onto cfg
func (in *PointsConfigurationInput) ApplyTo(cfg *PointsConfiguration) {
	setInt(&cfg.Standard1stPlace, in.Standard1stPlace)
	setInt(&cfg.Standard2ndPlace, in.Standard2ndPlace)
	setInt(&cfg.Standard3rdPlace, in.Standard3rdPlace)
	setInt(&cfg.Standard4thPlace, in.Standard4thPlace)
	setInt(&cfg.Standard5thPlace, in.Standard5thPlace)
	setInt(&cfg.FourX1stPlace, in.FourX1stPlace)
	setInt(&cfg.FourX2ndPlace, in.FourX2ndPlace)
	setInt(&cfg.FourX3rdPlace, in.FourX3rdPlace)
	setInt(&cfg.FourX4thPlace, in.FourX4thPlace)
	setInt(&cfg.FourX5thPlace, in.FourX5thPlace)
	setInt(&cfg.FourXExtendedPoints, in.FourXExtendedPoints)
	setInt(&cfg.FourXExtendedMaxPlace, in.FourXExtendedMaxPlace)
	if in.FourXExtendedEnabled != nil {
		cfg.FourXExtendedEnabled = *in.FourXExtendedEnabled
	}
	if in.IsActive != nil {
		cfg.IsActive = *in.IsActive
	}
	if in.Description != nil {
		cfg.Description = *in.Description
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

// ResultInput is the wire shape of a manually entered or edited result
type ResultInput struct {
	EventID          *uuid.UUID `json:"event_id"`
	CompetitorID     *uuid.UUID `json:"competitor_id"`
	CompetitorName   *string    `json:"competitor_name" validate:"omitempty,min=1"`
	MecaID           *string    `json:"meca_id"`
	CompetitionClass *string    `json:"competition_class" validate:"omitempty,min=1"`
	ClassID          *uuid.UUID `json:"class_id"`
	Format           *string    `json:"format"`
	Score            *string    `json:"score"`
	Notes            *string    `json:"notes"`
}

// ToEntity builds a new result. Placement and points are never taken from input.
func (in *ResultInput) ToEntity() (*CompetitionResult, error) {
	if in.EventID == nil {
		return nil, fmt.Errorf("%w: event_id is required", ErrInvalidInput)
	}
	if in.CompetitorName == nil || strings.TrimSpace(*in.CompetitorName) == "" {
		return nil, fmt.Errorf("%w: competitor_name is required", ErrInvalidInput)
	}
	if in.CompetitionClass == nil || strings.TrimSpace(*in.CompetitionClass) == "" {
		return nil, fmt.Errorf("%w: competition_class is required", ErrInvalidInput)
	}
	r := &CompetitionResult{
		ID:      uuid.New(),
		EventID: *in.EventID,
	}
	if err := in.ApplyTo(r); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyTo copies every set field onto r
func (in *ResultInput) ApplyTo(r *CompetitionResult) error {
	if in.EventID != nil {
		r.EventID = *in.EventID
	}
	if in.CompetitorID != nil {
		id := *in.CompetitorID
		r.CompetitorID = &id
	}
	if in.CompetitorName != nil {
		r.CompetitorName = strings.TrimSpace(*in.CompetitorName)
	}
	if in.MecaID != nil {
		r.MemberID = strings.TrimSpace(*in.MecaID)
	}
	if in.CompetitionClass != nil {
		r.CompetitionClass = strings.TrimSpace(*in.CompetitionClass)
	}
	if in.ClassID != nil {
		id := *in.ClassID
		r.ClassID = &id
	}
	if in.Format != nil {
		r.Format = strings.ToUpper(strings.TrimSpace(*in.Format))
	}
	if in.Score != nil {
		score, err := decimal.NewFromString(strings.TrimSpace(*in.Score))
		if err != nil {
			return fmt.Errorf("%w: score %q is not a number", ErrInvalidInput, *in.Score)
		}
		r.Score = score
	}
	if in.Notes != nil {
		r.ModificationNote = *in.Notes
	}
	return nil
}

// DefinitionInput is the wire shape of an achievement definition create/update
type DefinitionInput struct {
	Name              *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Description       *string  `json:"description"`
	GroupName         *string  `json:"group_name"`
	AchievementType   *string  `json:"achievement_type" validate:"omitempty,oneof=dynamic static"`
	TemplateKey       *string  `json:"template_key"`
	RenderValue       *string  `json:"render_value"`
	Format            *string  `json:"format" validate:"omitempty,oneof=SPL SQL"`
	CompetitionType   *string  `json:"competition_type"`
	MetricType        *string  `json:"metric_type" validate:"omitempty,oneof=score points"`
	ThresholdValue    *string  `json:"threshold_value"`
	ThresholdOperator *string  `json:"threshold_operator" validate:"omitempty,oneof=> >= = < <="`
	ClassFilter       []string `json:"class_filter"`
	DivisionFilter    []string `json:"division_filter"`
	PointsMultiplier  *int     `json:"points_multiplier" validate:"omitempty,gte=0,lte=4"`
	IsActive          *bool    `json:"is_active"`
	DisplayOrder      *int     `json:"display_order"`
}

// ApplyTo copies every set field onto d
func (in *DefinitionInput) ApplyTo(d *AchievementDefinition) error {
	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		d.Description = *in.Description
	}
	if in.GroupName != nil {
		d.GroupName = strings.TrimSpace(*in.GroupName)
	}
	if in.AchievementType != nil {
		d.AchievementType = AchievementType(*in.AchievementType)
	}
	if in.TemplateKey != nil {
		d.TemplateKey = *in.TemplateKey
	}
	if in.Format != nil {
		d.Format = *in.Format
	}
	if in.CompetitionType != nil {
		d.CompetitionType = *in.CompetitionType
	}
	if in.MetricType != nil {
		d.MetricType = MetricType(*in.MetricType)
	}
	if in.ThresholdValue != nil {
		v, err := decimal.NewFromString(*in.ThresholdValue)
		if err != nil {
			return fmt.Errorf("%w: threshold_value %q is not a number", ErrInvalidInput, *in.ThresholdValue)
		}
		d.ThresholdValue = v
	}
	if in.RenderValue != nil {
		v, err := decimal.NewFromString(*in.RenderValue)
		if err != nil {
			return fmt.Errorf("%w: render_value %q is not a number", ErrInvalidInput, *in.RenderValue)
		}
		d.RenderValue = &v
	}
	if in.ThresholdOperator != nil {
		d.ThresholdOperator = ThresholdOperator(*in.ThresholdOperator)
	}
	if in.ClassFilter != nil {
		d.ClassFilter = in.ClassFilter
	}
	if in.DivisionFilter != nil {
		d.DivisionFilter = in.DivisionFilter
	}
	if in.PointsMultiplier != nil {
		m := *in.PointsMultiplier
		d.PointsMultiplier = &m
	}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
	if in.DisplayOrder != nil {
		d.DisplayOrder = *in.DisplayOrder
	}
	return nil
}
