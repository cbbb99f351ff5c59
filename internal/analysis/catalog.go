package analysis

import "strings"

// ActivityCategory is one entry of the fixed activity-type catalogue.
type ActivityCategory struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ActivityCatalog is the fixed catalogue of activity categories.
var ActivityCatalog = []ActivityCategory{
	{Key: "harvest", Label: "수확"},
	{Key: "sowing", Label: "파종"},
	{Key: "management", Label: "관리"},
	{Key: "observation", Label: "관찰"},
	{Key: "other", Label: "기타"},
}

// CategoryMatch reports whether a catalogue entry was found in free text.
type CategoryMatch struct {
	ActivityCategory
	Selected bool `json:"selected"`
}

// MatchActivityTypes marks every catalogue entry whose label appears as a
// substring of the free text. Matching is non-exclusive: a single sentence
// describing a composite activity selects multiple entries. This is a
// documented heuristic standing in for structured tagging; replacing it with
// exact tags only requires changing this function.
func MatchActivityTypes(freeText string) []CategoryMatch {
	matches := make([]CategoryMatch, len(ActivityCatalog))
	for i, category := range ActivityCatalog {
		matches[i] = CategoryMatch{
			ActivityCategory: category,
			Selected:         freeText != "" && strings.Contains(freeText, category.Label),
		}
	}
	return matches
}
