package points

import "github.com/caraudio-league/points-engine/internal/models"

// PreviewRow shows what one placement earns under each multiplier
type PreviewRow struct {
	Placement  int `json:"placement"`
	Standard1X int `json:"standard_1x"`
	Standard2X int `json:"standard_2x"`
	Standard3X int `json:"standard_3x"`
	FourX      int `json:"four_x"`
}

// Preview returns the points table for placements 1-5. When extended 4X placements are
// enabled it adds a row for 6th place and, if larger, one for the last rewarded place.
func Preview(cfg *models.PointsConfiguration) []PreviewRow {
	rows := make([]PreviewRow, 0, 7)
	for placement := 1; placement <= 5; placement++ {
		rows = append(rows, PreviewRow{
			Placement:  placement,
			Standard1X: Calculate(placement, 1, cfg),
			Standard2X: Calculate(placement, 2, cfg),
			Standard3X: Calculate(placement, 3, cfg),
			FourX:      Calculate(placement, FourXMultiplier, cfg),
		})
	}

	if cfg == nil || !cfg.FourXExtendedEnabled {
		return rows
	}

	rows = append(rows, PreviewRow{Placement: 6, FourX: cfg.FourXExtendedPoints})
	if cfg.FourXExtendedMaxPlace > 6 {
		rows = append(rows, PreviewRow{Placement: cfg.FourXExtendedMaxPlace, FourX: cfg.FourXExtendedPoints})
	}
	return rows
}
