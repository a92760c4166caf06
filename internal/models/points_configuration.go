package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default point values used when a season has no stored configuration
const (
	DefaultStandard1st = 5
	DefaultStandard2nd = 4
	DefaultStandard3rd = 3
	DefaultStandard4th = 2
	DefaultStandard5th = 1

	DefaultFourX1st = 30
	DefaultFourX2nd = 27
	DefaultFourX3rd = 24
	DefaultFourX4th = 21
	DefaultFourX5th = 18

	DefaultFourXExtendedPoints   = 15
	DefaultFourXExtendedMaxPlace = 50

	MinExtendedMaxPlace = 6
	MaxExtendedMaxPlace = 100
)

// PointsConfiguration is the scoring table of one season
type PointsConfiguration struct {
	ID       uuid.UUID `db:"id" json:"id"`
	SeasonID uuid.UUID `db:"season_id" json:"season_id"`

	Standard1stPlace int `db:"standard_1st_place" json:"standard_1st_place" validate:"gte=0"`
	Standard2ndPlace int `db:"standard_2nd_place" json:"standard_2nd_place" validate:"gte=0"`
	Standard3rdPlace int `db:"standard_3rd_place" json:"standard_3rd_place" validate:"gte=0"`
	Standard4thPlace int `db:"standard_4th_place" json:"standard_4th_place" validate:"gte=0"`
	Standard5thPlace int `db:"standard_5th_place" json:"standard_5th_place" validate:"gte=0"`

	FourX1stPlace int `db:"four_x_1st_place" json:"four_x_1st_place" validate:"gte=0"`
	FourX2ndPlace int `db:"four_x_2nd_place" json:"four_x_2nd_place" validate:"gte=0"`
	FourX3rdPlace int `db:"four_x_3rd_place" json:"four_x_3rd_place" validate:"gte=0"`
	FourX4thPlace int `db:"four_x_4th_place" json:"four_x_4th_place" validate:"gte=0"`
	FourX5thPlace int `db:"four_x_5th_place" json:"four_x_5th_place" validate:"gte=0"`

	FourXExtendedEnabled  bool `db:"four_x_extended_enabled" json:"four_x_extended_enabled"`
	FourXExtendedPoints   int  `db:"four_x_extended_points" json:"four_x_extended_points" validate:"gte=0"`
	FourXExtendedMaxPlace int  `db:"four_x_extended_max_place" json:"four_x_extended_max_place" validate:"gte=6,lte=100"`

	IsActive    bool       `db:"is_active" json:"is_active"`
	Description string     `db:"description" json:"description,omitempty"`
	UpdatedBy   *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// DefaultPointsConfiguration returns the documented fallback table for a season
func DefaultPointsConfiguration(seasonID uuid.UUID, seasonName string) *PointsConfiguration {
	now := time.Now().UTC()
	cfg := &PointsConfiguration{
		ID:                    uuid.New(),
		SeasonID:              seasonID,
		Standard1stPlace:      DefaultStandard1st,
		Standard2ndPlace:      DefaultStandard2nd,
		Standard3rdPlace:      DefaultStandard3rd,
		Standard4thPlace:      DefaultStandard4th,
		Standard5thPlace:      DefaultStandard5th,
		FourX1stPlace:         DefaultFourX1st,
		FourX2ndPlace:         DefaultFourX2nd,
		FourX3rdPlace:         DefaultFourX3rd,
		FourX4thPlace:         DefaultFourX4th,
		FourX5thPlace:         DefaultFourX5th,
		FourXExtendedEnabled:  false,
		FourXExtendedPoints:   DefaultFourXExtendedPoints,
		FourXExtendedMaxPlace: DefaultFourXExtendedMaxPlace,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if seasonName != "" {
		cfg.Description = fmt.Sprintf("Default configuration for %s", seasonName)
	}
	return cfg
}

// StandardPoints returns the base value for ranks 1-5, 0 otherwise
func (c *PointsConfiguration) StandardPoints(placement int) int {
	switch placement {
	case 1:
		return c.Standard1stPlace
	case 2:
		return c.Standard2ndPlace
	case 3:
		return c.Standard3rdPlace
	case 4:
		return c.Standard4thPlace
	case 5:
		return c.Standard5thPlace
	default:
		return 0
	}
}

// FourXPoints returns the fixed 4X value for ranks 1-5, 0 otherwise
func (c *PointsConfiguration) FourXPoints(placement int) int {
	switch placement {
	case 1:
		return c.FourX1stPlace
	case 2:
		return c.FourX2ndPlace
	case 3:
		return c.FourX3rdPlace
	case 4:
		return c.FourX4thPlace
	case 5:
		return c.FourX5thPlace
	default:
		return 0
	}
}

// Clone returns a copy safe to hand out of a cache
func (c *PointsConfiguration) Clone() *PointsConfiguration {
	if c == nil {
		return nil
	}
	cp := *c
	if c.UpdatedBy != nil {
		id := *c.UpdatedBy
		cp.UpdatedBy = &id
	}
	return &cp
}
