package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/caraudio-league/points-engine/internal/models"
	"github.com/caraudio-league/points-engine/internal/points"
)

// EligibilityFunc reports whether a member id earns points
type EligibilityFunc func(ctx context.Context, memberID string) (bool, error)

type rankingGroup struct {
	format  string
	class   string
	results []*models.CompetitionResult
}

// groupResults buckets results by (resolved format, class) in order of first appearance.
// Results whose format does not earn points are returned separately.
func groupResults(results []*models.CompetitionResult) (groups []*rankingGroup, unranked []*models.CompetitionResult) {
	index := make(map[string]*rankingGroup)
	for _, r := range results {
		format := r.ResolvedFormat()
		if !models.IsPointsEligibleFormat(format) {
			unranked = append(unranked, r)
			continue
		}
		class := strings.TrimSpace(r.CompetitionClass)
		key := format + "\x00" + class
		g, ok := index[key]
		if !ok {
			g = &rankingGroup{format: format, class: class}
			index[key] = g
			groups = append(groups, g)
		}
		g.results = append(g.results, r)
	}
	return groups, unranked
}

// rankEvent computes placement and points for every result of an event.
//
// Within a group results are ordered by score, highest first. Equal scores keep the order
// the results were given in, so the caller must pass them in a stable order (created_at, id).
// Results in a format that does not earn points get 0 points and keep their placement.
func rankEvent(ctx context.Context, results []*models.CompetitionResult, multiplier int, cfg *models.PointsConfiguration, eligible EligibilityFunc) ([]models.PlacementUpdate, int, error) {
	groups, unranked := groupResults(results)
	updates := make([]models.PlacementUpdate, 0, len(results))

	for _, g := range groups {
		ordered := make([]*models.CompetitionResult, len(g.results))
		copy(ordered, g.results)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Score.GreaterThan(ordered[j].Score)
		})

		for i, r := range ordered {
			placement := i + 1
			ok, err := eligible(ctx, r.MemberID)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to check eligibility for result %s: %w", r.ID, err)
			}
			pts := 0
			if ok {
				pts = points.Calculate(placement, multiplier, cfg)
			}
			updates = append(updates, models.PlacementUpdate{
				ResultID:     r.ID,
				Placement:    placement,
				PointsEarned: pts,
			})
		}
	}

	for _, r := range unranked {
		updates = append(updates, models.PlacementUpdate{
			ResultID:     r.ID,
			Placement:    r.Placement,
			PointsEarned: 0,
		})
	}

	return updates, len(groups), nil
}
