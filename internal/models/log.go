package models

import (
	"encoding/json"
	"time"
)

// ActivityLog is a persisted activity occurrence for one student. The
// activity_tags and related_metrics columns are jsonb; related_metrics may
// hold either an object or a one-element array wrapping an object, a legacy
// shape the analysis layer accepts transparently.
type ActivityLog struct {
	ID             string          `db:"id" json:"id"`
	StudentID      string          `db:"student_id" json:"student_id"`
	UploadID       *string         `db:"upload_id" json:"upload_id,omitempty"`
	LogDate        *string         `db:"log_date" json:"log_date,omitempty"`
	EmotionTag     string          `db:"emotion_tag" json:"emotion_tag"`
	ActivityTags   json.RawMessage `db:"activity_tags" json:"activity_tags,omitempty"`
	LogContent     string          `db:"log_content" json:"log_content"`
	RelatedMetrics json.RawMessage `db:"related_metrics" json:"related_metrics,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// ActivityLogFilter narrows log queries to a student and date range.
type ActivityLogFilter struct {
	StudentID string
	From      string
	To        string
	Page      int
	PageSize  int
}

// UpdateActivityLogRequest carries editable fields for a log row.
type UpdateActivityLogRequest struct {
	LogDate        *string         `json:"log_date"`
	EmotionTag     *string         `json:"emotion_tag"`
	ActivityTags   json.RawMessage `json:"activity_tags"`
	LogContent     *string         `json:"log_content"`
	RelatedMetrics json.RawMessage `json:"related_metrics"`
}
