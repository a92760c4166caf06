// Package achievements awards threshold badges for competition results.
package achievements

import (
	"strings"

	"github.com/caraudio-league/points-engine/internal/models"
)

// Matches reports whether a result belongs to a definition's competition.
//
// A definition with a class filter matches on the exact class name, ignoring case, and on
// the event multiplier when the definition requires one. Definitions without a filter fall
// back to name heuristics keyed on the competition type. The heuristics are checked in a
// fixed order and are mutually exclusive; keep that order when adding buckets.
func Matches(result *models.CompetitionResult, def *models.AchievementDefinition) bool {
	if len(def.ClassFilter) > 0 {
		return matchesClassFilter(result, def)
	}
	return matchesLegacy(result, def)
}

func matchesClassFilter(result *models.CompetitionResult, def *models.AchievementDefinition) bool {
	class := normalize(result.CompetitionClass)
	matched := false
	for _, allowed := range def.ClassFilter {
		if class == normalize(allowed) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if def.PointsMultiplier != nil && *def.PointsMultiplier > 0 {
		return effectiveMultiplier(result) >= *def.PointsMultiplier
	}
	return true
}

func effectiveMultiplier(result *models.CompetitionResult) int {
	if result.EventMultiplier > 0 {
		return result.EventMultiplier
	}
	return models.DefaultEventMultiplier
}

func matchesLegacy(result *models.CompetitionResult, def *models.AchievementDefinition) bool {
	class := strings.ToLower(result.CompetitionClass)
	format := strings.ToLower(result.ResolvedFormat())
	competition := strings.ToLower(def.CompetitionType)

	isRadical := strings.Contains(class, "radical")
	isParkAndPound := strings.Contains(class, "park") && strings.Contains(class, "pound")
	is360 := strings.Contains(class, "360") || strings.Contains(class, "c360")
	isDueling := strings.Contains(class, "duel") || strings.Contains(class, "demo")
	isInstall := strings.Contains(class, "install") || format == "sql"

	switch {
	case strings.Contains(competition, "radical x") || strings.Contains(competition, "radx"):
		return isRadical
	case strings.Contains(competition, "park and pound"):
		return isParkAndPound
	case strings.Contains(competition, "certified 360 sound") || strings.Contains(competition, "c360s"):
		return is360
	case strings.Contains(competition, "dueling demos"):
		return isDueling && !is360
	case strings.Contains(competition, "certified sound"):
		return isInstall
	case strings.Contains(competition, "certified at the headrest"):
		return !isRadical && !isParkAndPound && !isDueling && !isInstall && !strings.Contains(class, "kids")
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
