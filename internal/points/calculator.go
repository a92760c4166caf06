// Package points holds the points calculator and the per-season scoring configuration store.
package points

import (
	"github.com/google/uuid"

	"github.com/caraudio-league/points-engine/internal/models"
)

// Multiplier values with special scoring
const (
	NonCompetitiveMultiplier = 0
	FourXMultiplier          = 4
)

var defaultTable = models.DefaultPointsConfiguration(uuid.Nil, "")

// Calculate returns the points earned for a placement at an event with the given multiplier.
// A nil cfg scores with the default table.
//
//   - multiplier 0 earns nothing
//   - multiplier 4 uses the fixed 4X table for ranks 1-5 and the extended value for
//     ranks 6..max when extended placements are enabled
//   - multipliers 1-3 earn the standard base value times the multiplier for ranks 1-5
//
// Any other multiplier or placement earns 0.
func Calculate(placement, multiplier int, cfg *models.PointsConfiguration) int {
	if cfg == nil {
		cfg = defaultTable
	}
	if placement < 1 {
		return 0
	}

	switch {
	case multiplier == NonCompetitiveMultiplier:
		return 0
	case multiplier == FourXMultiplier:
		if placement <= 5 {
			return cfg.FourXPoints(placement)
		}
		if cfg.FourXExtendedEnabled && placement <= cfg.FourXExtendedMaxPlace {
			return cfg.FourXExtendedPoints
		}
		return 0
	case multiplier >= 1 && multiplier <= 3:
		return cfg.StandardPoints(placement) * multiplier
	default:
		return 0
	}
}
