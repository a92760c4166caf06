package achievements

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/caraudio-league/points-engine/internal/models"
)

// definitionGroup is a set of mutually exclusive definitions, highest threshold first
type definitionGroup struct {
	key  string
	defs []*models.AchievementDefinition
}

// groupDefinitions partitions definitions by group key, keeping the order in which keys
// first appear.
func groupDefinitions(defs []*models.AchievementDefinition) []*definitionGroup {
	var groups []*definitionGroup
	index := make(map[string]*definitionGroup)
	for _, def := range defs {
		key := def.GroupKey()
		g, ok := index[key]
		if !ok {
			g = &definitionGroup{key: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.defs = append(g.defs, def)
	}
	for _, g := range groups {
		sort.SliceStable(g.defs, func(i, j int) bool {
			return g.defs[i].ThresholdValue.GreaterThan(g.defs[j].ThresholdValue)
		})
	}
	return groups
}

// qualifying returns the definition with the highest threshold the result meets, or nil
// when the result does not belong to the group or meets no threshold.
func (g *definitionGroup) qualifying(result *models.CompetitionResult) *models.AchievementDefinition {
	matched := false
	for _, def := range g.defs {
		if Matches(result, def) {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	for _, def := range g.defs {
		if metricValue(result, def).GreaterThanOrEqual(def.ThresholdValue) {
			return def
		}
	}
	return nil
}

func metricValue(result *models.CompetitionResult, def *models.AchievementDefinition) decimal.Decimal {
	if def.MetricType == models.MetricPoints {
		return decimal.NewFromInt(int64(result.PointsEarned))
	}
	return result.Score
}
