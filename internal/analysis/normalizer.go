package analysis

import (
	"fmt"
	"strconv"
	"strings"
)

// Field alias chains, highest priority first. The platform's records come
// from at least three producers with inconsistent naming (camelCase manual
// edits, snake_case legacy rows, domain aliases in LLM output); this table is
// the single place those chains live.
var (
	dateAliases         = []string{"date", "log_date", "activity_date"}
	activityNameAliases = []string{"activityName", "activity_name", "title"}
	activityTypeAliases = []string{"activityType", "activity_type", "category"}
	noteAliases         = []string{"note", "memo", "comment"}
	durationAliases     = []string{"durationMinutes", "duration_minutes", "minutes", "duration"}
	levelAliases        = []string{"level", "abilityLevel", "ability_level"}
	abilityAliases      = []string{"ability", "abilities", "skills", "skill_tags"}
	scoreAliases        = []string{"score", "rating"}
	scoreExplAliases    = []string{"scoreExplanation", "score_explanation", "score_reason"}
	emotionSumAliases   = []string{"emotionSummary", "emotion_summary", "emotion"}
	emotionCauseAliases = []string{"emotionCause", "emotion_cause", "cause"}
	behaviorsAliases    = []string{"observedBehaviors", "observed_behaviors", "behaviors", "behavior"}
	emotionTagAliases   = []string{"emotionTags", "emotion_tags", "emotions"}
	rawTextAliases      = []string{"rawTextCleaned", "raw_text_cleaned", "raw_text", "rawText", "text"}
	studentsAliases     = []string{"students", "participants"}
)

// Normalize converts a loosely-typed record into a fully-defaulted
// ActivityAnalysis. It is total: malformed input degrades to defaults and it
// never returns an error. A nested "analysis" object, when present, takes
// priority over top-level keys for every field.
func Normalize(raw RawRecord) ActivityAnalysis {
	r := resolver{sources: sourceMaps(raw)}

	out := ActivityAnalysis{
		Students:          r.students(studentsAliases),
		Date:              r.dateString(dateAliases),
		ActivityName:      r.text(activityNameAliases),
		ActivityType:      r.text(activityTypeAliases),
		Note:              r.text(noteAliases),
		DurationMinutes:   r.minutes(durationAliases),
		Level:             r.level(levelAliases),
		Ability:           r.tags(abilityAliases),
		Score:             r.score(scoreAliases),
		ScoreExplanation:  r.text(scoreExplAliases),
		EmotionSummary:    r.text(emotionSumAliases),
		EmotionCause:      r.text(emotionCauseAliases),
		ObservedBehaviors: r.text(behaviorsAliases),
		EmotionTags:       r.tags(emotionTagAliases),
		RawTextCleaned:    r.text(rawTextAliases),
	}
	return out
}

// sourceMaps orders lookup sources by priority: the pre-normalized nested
// "analysis" object first, then the record itself.
func sourceMaps(raw RawRecord) []map[string]interface{} {
	if raw == nil {
		return nil
	}
	sources := make([]map[string]interface{}, 0, 2)
	if nested, ok := raw["analysis"].(map[string]interface{}); ok {
		sources = append(sources, nested)
	}
	sources = append(sources, raw)
	return sources
}

type resolver struct {
	sources []map[string]interface{}
}

// lookup returns the first present (non-nil) value for any alias, walking
// sources in priority order and aliases in chain order within each source.
func (r resolver) lookup(aliases []string) (interface{}, bool) {
	for _, source := range r.sources {
		for _, key := range aliases {
			if v, ok := source[key]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

// text resolves a display string: the first candidate that trims to a
// non-empty string wins. Empty strings fall through so a later alias can
// still supply a value; the default is "".
func (r resolver) text(aliases []string) string {
	for _, source := range r.sources {
		for _, key := range aliases {
			v, ok := source[key]
			if !ok || v == nil {
				continue
			}
			if s := strings.TrimSpace(coerceString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

// minutes resolves a duration in whole minutes. Presence short-circuits the
// chain even for zero: a recorded 0-minute duration is meaningful, unlike an
// empty display string. Negative or non-numeric values yield null.
func (r resolver) minutes(aliases []string) *int {
	v, ok := r.lookup(aliases)
	if !ok {
		return nil
	}
	f, ok := coerceNumber(v)
	if !ok || f < 0 {
		return nil
	}
	m := int(f)
	return &m
}

func (r resolver) score(aliases []string) *float64 {
	v, ok := r.lookup(aliases)
	if !ok {
		return nil
	}
	f, ok := coerceNumber(v)
	if !ok {
		return nil
	}
	if f < ScoreMin {
		f = ScoreMin
	}
	if f > ScoreMax {
		f = ScoreMax
	}
	return &f
}

func (r resolver) level(aliases []string) string {
	value := r.text(aliases)
	if validLevel(value) {
		return value
	}
	return ""
}

func (r resolver) tags(aliases []string) []string {
	v, ok := r.lookup(aliases)
	if !ok {
		return []string{}
	}
	return NormalizeTags(v)
}

// dateString keeps only values already shaped like a calendar date
// (YYYY-MM-DD); timestamps are trimmed to their date portion.
func (r resolver) dateString(aliases []string) *string {
	value := r.text(aliases)
	if len(value) >= 10 {
		candidate := value[:10]
		if IsCalendarDate(candidate) {
			return &candidate
		}
	}
	return nil
}

// students accepts a list of {id, name} maps or bare name strings. Duplicate
// names collapse to the first occurrence.
func (r resolver) students(aliases []string) []StudentRef {
	v, ok := r.lookup(aliases)
	if !ok {
		return []StudentRef{}
	}
	items, ok := v.([]interface{})
	if !ok {
		if name := strings.TrimSpace(coerceString(v)); name != "" {
			return []StudentRef{{Name: name}}
		}
		return []StudentRef{}
	}

	seen := make(map[string]struct{}, len(items))
	refs := make([]StudentRef, 0, len(items))
	for _, item := range items {
		ref := StudentRef{}
		switch typed := item.(type) {
		case map[string]interface{}:
			ref.ID = strings.TrimSpace(coerceString(typed["id"]))
			ref.Name = strings.TrimSpace(coerceString(typed["name"]))
		default:
			ref.Name = strings.TrimSpace(coerceString(item))
		}
		if ref.Name == "" && ref.ID == "" {
			continue
		}
		if _, dup := seen[ref.Name]; dup && ref.Name != "" {
			continue
		}
		seen[ref.Name] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

func coerceString(v interface{}) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int:
		return strconv.Itoa(typed)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func coerceNumber(v interface{}) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		trimmed := strings.TrimSpace(typed)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// IsCalendarDate reports whether s is shaped like YYYY-MM-DD.
func IsCalendarDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, ch := range s {
		if i == 4 || i == 7 {
			continue
		}
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
