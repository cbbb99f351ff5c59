package analysis

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/saessak-edu/saessak-api/internal/models"
)

// DefaultSessionMinutes is the assumed duration for a log entry that records
// no explicit minutes. It reflects a typical session length; flagged for
// product confirmation rather than derived from any requirement.
const DefaultSessionMinutes = 30

// UnrecordedEmotion is the bucket for entries without an emotion tag.
const UnrecordedEmotion = "미기록"

// DashboardView is the chart-ready aggregate over a student's filtered log
// entries. It is derived on every query and never persisted.
type DashboardView struct {
	RecordCount         int                 `json:"recordCount"`
	EmotionDistribution []EmotionCount      `json:"emotionDistribution"`
	EmotionDetails      []EmotionDetail     `json:"emotionDetails"`
	ActivitySeries      []DailyMinutes      `json:"activitySeries"`
	ActivityDetails     []ActivityDetailRow `json:"activityDetails"`
}

// EmotionCount is one slice of the emotion-frequency distribution. Value is
// the percentage of total records, rounded to the nearest integer.
type EmotionCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Value int    `json:"value"`
}

// EmotionDetail breaks one emotion down by date.
type EmotionDetail struct {
	Emotion string              `json:"emotion"`
	Dates   []EmotionDateDetail `json:"dates"`
}

// EmotionDateDetail lists the distinct activities observed on one date for
// one emotion.
type EmotionDateDetail struct {
	Date       string   `json:"date"`
	Activities []string `json:"activities"`
}

// DailyMinutes is one point of the activity-duration time series.
type DailyMinutes struct {
	Date    string `json:"date"`
	Minutes int    `json:"minutes"`
}

// ActivityDetailRow is one table row per log entry. Absent values render as
// empty strings; no row is ever dropped.
type ActivityDetailRow struct {
	Date         string `json:"date"`
	Activity     string `json:"activity"`
	Category     string `json:"category"`
	ActivityType string `json:"activityType"`
	Comment      string `json:"comment"`
	Emotion      string `json:"emotion"`
}

// Aggregate builds a DashboardView from an already-filtered collection of
// log entries. It is a pure, total function: malformed related_metrics
// degrade to an empty object and never fail the aggregation.
func Aggregate(entries []models.ActivityLog) DashboardView {
	view := DashboardView{
		RecordCount:         len(entries),
		EmotionDistribution: []EmotionCount{},
		EmotionDetails:      []EmotionDetail{},
		ActivitySeries:      []DailyMinutes{},
		ActivityDetails:     []ActivityDetailRow{},
	}
	if len(entries) == 0 {
		return view
	}

	type emotionGroup struct {
		count     int
		byDate    map[string]map[string]struct{}
		dateOrder []string
	}
	groups := make(map[string]*emotionGroup)
	emotionOrder := []string{}

	minutesByDate := map[string]int{}
	seriesDates := []string{}

	for _, entry := range entries {
		metrics := unwrapMetrics(entry.RelatedMetrics)
		date := resolveDate(entry)
		activity := resolveActivity(entry, metrics)

		emotion := strings.TrimSpace(entry.EmotionTag)
		if emotion == "" {
			emotion = UnrecordedEmotion
		}
		group, ok := groups[emotion]
		if !ok {
			group = &emotionGroup{byDate: map[string]map[string]struct{}{}}
			groups[emotion] = group
			emotionOrder = append(emotionOrder, emotion)
		}
		group.count++
		if date != "" {
			if _, ok := group.byDate[date]; !ok {
				group.byDate[date] = map[string]struct{}{}
				group.dateOrder = append(group.dateOrder, date)
			}
			if activity != "" {
				group.byDate[date][activity] = struct{}{}
			}
		}

		if date != "" {
			if _, ok := minutesByDate[date]; !ok {
				seriesDates = append(seriesDates, date)
			}
			minutesByDate[date] += resolveMinutes(metrics)
		}

		view.ActivityDetails = append(view.ActivityDetails, ActivityDetailRow{
			Date:         date,
			Activity:     activity,
			Category:     metricString(metrics, "category", "activity_category"),
			ActivityType: metricString(metrics, "activity_type", "activityType", "type"),
			Comment:      entry.LogContent,
			Emotion:      entry.EmotionTag,
		})
	}

	total := len(entries)
	for _, emotion := range emotionOrder {
		group := groups[emotion]
		pct := 0
		if total > 0 {
			pct = int(math.Round(float64(group.count) / float64(total) * 100))
		}
		view.EmotionDistribution = append(view.EmotionDistribution, EmotionCount{
			Name:  emotion,
			Count: group.count,
			Value: pct,
		})
	}
	// Descending by count; first-encountered order breaks ties.
	sort.SliceStable(view.EmotionDistribution, func(i, j int) bool {
		return view.EmotionDistribution[i].Count > view.EmotionDistribution[j].Count
	})

	for _, bucket := range view.EmotionDistribution {
		group := groups[bucket.Name]
		detail := EmotionDetail{Emotion: bucket.Name, Dates: []EmotionDateDetail{}}
		dates := append([]string(nil), group.dateOrder...)
		sort.Strings(dates)
		for _, date := range dates {
			activities := make([]string, 0, len(group.byDate[date]))
			for activity := range group.byDate[date] {
				activities = append(activities, activity)
			}
			sort.Strings(activities)
			detail.Dates = append(detail.Dates, EmotionDateDetail{Date: date, Activities: activities})
		}
		view.EmotionDetails = append(view.EmotionDetails, detail)
	}

	sort.Strings(seriesDates)
	for _, date := range seriesDates {
		view.ActivitySeries = append(view.ActivitySeries, DailyMinutes{Date: date, Minutes: minutesByDate[date]})
	}

	return view
}

// unwrapMetrics accepts related_metrics as a JSON object or a one-element
// array wrapping an object. Anything else yields an empty object.
func unwrapMetrics(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return map[string]interface{}{}
	}
	switch typed := decoded.(type) {
	case map[string]interface{}:
		return typed
	case []interface{}:
		if len(typed) > 0 {
			if obj, ok := typed[0].(map[string]interface{}); ok {
				return obj
			}
		}
	}
	return map[string]interface{}{}
}

// resolveDate prefers the explicit log_date, falling back to the date
// portion of created_at. An empty result means the entry is undated.
func resolveDate(entry models.ActivityLog) string {
	if entry.LogDate != nil {
		if date := strings.TrimSpace(*entry.LogDate); len(date) >= 10 {
			return date[:10]
		}
	}
	if !entry.CreatedAt.IsZero() {
		return entry.CreatedAt.Format("2006-01-02")
	}
	return ""
}

// resolveMinutes reads explicit minutes from related_metrics, falling back
// to the documented session-length default.
func resolveMinutes(metrics map[string]interface{}) int {
	for _, key := range []string{"minutes", "duration_minutes"} {
		if v, ok := metrics[key]; ok && v != nil {
			if f, ok := coerceNumber(v); ok && f >= 0 {
				return int(f)
			}
		}
	}
	return DefaultSessionMinutes
}

// resolveActivity mirrors the normalizer's alias problem on the read side:
// related_metrics names win, then the first activity tag on the row.
func resolveActivity(entry models.ActivityLog, metrics map[string]interface{}) string {
	if name := metricString(metrics, "activity_name", "activity", "activityName"); name != "" {
		return name
	}
	return firstActivityTag(entry.ActivityTags)
}

func metricString(metrics map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := metrics[key]; ok && v != nil {
			if s := strings.TrimSpace(coerceString(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstActivityTag(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var tags []interface{}
	if err := json.Unmarshal(raw, &tags); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			return strings.TrimSpace(single)
		}
		return ""
	}
	for _, tag := range tags {
		if s := strings.TrimSpace(coerceString(tag)); s != "" {
			return s
		}
	}
	return ""
}
