package inventory

import "strings"

// ExclusionRule suppresses token matches whose product name contains one of
// Excluded when the query mentions one of Intents. Keywords are matched on
// normalized text; leading or trailing spaces in a keyword are significant.
type ExclusionRule struct {
	Name     string
	Intents  []string
	Excluded []string
}

// DefaultRules is a small curated table for retail catalogs (es/en).
// It is not exhaustive; replace it through WithRules for other verticals.
var DefaultRules = []ExclusionRule{
	{
		Name:     "laptop-accessories",
		Intents:  []string{"portatil", "portátil", "laptop", "notebook"},
		Excluded: []string{"memoria", "memory", "ram ", "funda", "case", "mochila", "backpack", "cargador", "charger"},
	},
	{
		Name:     "tablet-accessories",
		Intents:  []string{"tablet"},
		Excluded: []string{"funda", "case", "cristal", "protector", "cargador", "charger"},
	},
	{
		Name:     "games-not-hardware",
		Intents:  []string{"juego", "game"},
		Excluded: []string{"consola", "console", "mando", "controller"},
	},
	{
		Name:     "console-not-games",
		Intents:  []string{"consola", "console", "ps5", "xbox"},
		Excluded: []string{"juego", "game"},
	},
}

// activeExclusions returns the excluded keywords triggered by the query.
func activeExclusions(rules []ExclusionRule, normalizedQuery string) []string {
	var out []string
	for _, r := range rules {
		if containsAny(normalizedQuery, r.Intents) {
			out = append(out, r.Excluded...)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
