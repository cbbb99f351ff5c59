package analysis

// RawRecord is a loosely-typed activity record as produced by manual entry,
// legacy payloads, or LLM extraction. Keys vary by source; nothing about its
// shape is guaranteed.
type RawRecord = map[string]interface{}

// StudentRef identifies one participant in an activity.
type StudentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ActivityAnalysis is the canonical, fully-defaulted analysis record built
// from a RawRecord. Every field carries a defined default; absence of
// information is represented explicitly, never omitted.
type ActivityAnalysis struct {
	Students          []StudentRef `json:"students"`
	Date              *string      `json:"date"`
	ActivityName      string       `json:"activityName"`
	ActivityType      string       `json:"activityType"`
	Note              string       `json:"note"`
	DurationMinutes   *int         `json:"durationMinutes"`
	Level             string       `json:"level"`
	Ability           []string     `json:"ability"`
	Score             *float64     `json:"score"`
	ScoreExplanation  string       `json:"scoreExplanation"`
	EmotionSummary    string       `json:"emotionSummary"`
	EmotionCause      string       `json:"emotionCause"`
	ObservedBehaviors string       `json:"observedBehaviors"`
	EmotionTags       []string     `json:"emotionTags"`
	RawTextCleaned    string       `json:"rawTextCleaned"`
}

// Score bounds for the canonical record. Out-of-range input is clamped
// rather than rejected; the normalizer has no failure path.
const (
	ScoreMin = 0
	ScoreMax = 100
)

// Levels is the controlled vocabulary for ability levels.
var Levels = []string{"상", "중", "하"}

func validLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}
