package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/analysis"
	"github.com/saessak-edu/saessak-api/internal/models"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
)

type fakeLogRepo struct {
	inserted []*models.ActivityLog
	byID     map[string]*models.ActivityLog
	updates  map[string]models.UpdateActivityLogRequest
	deleted  []string
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{byID: map[string]*models.ActivityLog{}, updates: map[string]models.UpdateActivityLogRequest{}}
}

func (f *fakeLogRepo) InsertBatch(_ context.Context, logs []*models.ActivityLog) error {
	f.inserted = append(f.inserted, logs...)
	return nil
}

func (f *fakeLogRepo) ListByStudent(_ context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, error) {
	var out []models.ActivityLog
	for _, log := range f.byID {
		if log.StudentID == filter.StudentID {
			out = append(out, *log)
		}
	}
	return out, nil
}

func (f *fakeLogRepo) GetByID(_ context.Context, id string) (*models.ActivityLog, error) {
	log, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *log
	return &clone, nil
}

func (f *fakeLogRepo) Update(_ context.Context, id string, req models.UpdateActivityLogRequest) error {
	if _, ok := f.byID[id]; !ok {
		return sql.ErrNoRows
	}
	f.updates[id] = req
	if req.EmotionTag != nil {
		f.byID[id].EmotionTag = *req.EmotionTag
	}
	return nil
}

func (f *fakeLogRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeCacheInvalidator struct {
	patterns []string
}

func (f *fakeCacheInvalidator) Invalidate(_ context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

func intPtr(v int) *int { return &v }

func float64Ptr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func TestLogServiceCreateBatch_MapsRecords(t *testing.T) {
	repo := newFakeLogRepo()
	cache := &fakeCacheInvalidator{}
	svc := NewLogService(LogServiceParams{
		Repo:     repo,
		Students: &fakeStudentLookup{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}},
		Cache:    cache,
		Logger:   zap.NewNop(),
	})

	date := "2025-03-02"
	uploadID := "upl-1"
	records := []analysis.ActivityAnalysis{
		{
			Date:            &date,
			ActivityName:    "방울토마토 수확",
			ActivityType:    "수확",
			Note:            "집중해서 참여함",
			DurationMinutes: intPtr(40),
			Level:           "상",
			Score:           float64Ptr(85),
			EmotionSummary:  "즐거워함",
			EmotionTags:     []string{"기쁨", "안정"},
		},
		{
			RawTextCleaned: "기록 원문",
			EmotionTags:    []string{},
		},
	}

	logs, err := svc.CreateBatch(context.Background(), "stu-1", &uploadID, records)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	first := logs[0]
	assert.Equal(t, "stu-1", first.StudentID)
	require.NotNil(t, first.UploadID)
	assert.Equal(t, "upl-1", *first.UploadID)
	require.NotNil(t, first.LogDate)
	assert.Equal(t, "2025-03-02", *first.LogDate)
	assert.Equal(t, "기쁨", first.EmotionTag)
	assert.Equal(t, "집중해서 참여함", first.LogContent)

	var tags []string
	require.NoError(t, json.Unmarshal(first.ActivityTags, &tags))
	assert.Equal(t, []string{"방울토마토", "수확"}, tags)

	var metrics map[string]interface{}
	require.NoError(t, json.Unmarshal(first.RelatedMetrics, &metrics))
	assert.Equal(t, "방울토마토 수확", metrics["activity_name"])
	assert.Equal(t, float64(40), metrics["duration_minutes"])
	assert.Equal(t, "상", metrics["level"])
	assert.Equal(t, float64(85), metrics["score"])
	assert.Equal(t, "즐거워함", metrics["emotion_summary"])

	second := logs[1]
	assert.Equal(t, "", second.EmotionTag)
	assert.Equal(t, "기록 원문", second.LogContent)

	require.Len(t, cache.patterns, 1)
	assert.Equal(t, "dashboard:stu-1:*", cache.patterns[0])
}

func TestLogServiceCreateBatch_Validation(t *testing.T) {
	svc := NewLogService(LogServiceParams{
		Repo:     newFakeLogRepo(),
		Students: &fakeStudentLookup{students: map[string]*models.Student{}},
	})

	_, err := svc.CreateBatch(context.Background(), "", nil, []analysis.ActivityAnalysis{{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateBatch(context.Background(), "stu-1", nil, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateBatch(context.Background(), "missing", nil, []analysis.ActivityAnalysis{{}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLogServiceUpdate_InvalidatesCache(t *testing.T) {
	repo := newFakeLogRepo()
	repo.byID["log-1"] = &models.ActivityLog{ID: "log-1", StudentID: "stu-1", EmotionTag: "기쁨"}
	cache := &fakeCacheInvalidator{}
	svc := NewLogService(LogServiceParams{Repo: repo, Cache: cache, Logger: zap.NewNop()})

	updated, err := svc.Update(context.Background(), "log-1", models.UpdateActivityLogRequest{EmotionTag: strPtr("슬픔")})
	require.NoError(t, err)
	assert.Equal(t, "슬픔", updated.EmotionTag)
	assert.Equal(t, []string{"dashboard:stu-1:*"}, cache.patterns)
}

func TestLogServiceUpdate_RejectsBadDate(t *testing.T) {
	svc := NewLogService(LogServiceParams{Repo: newFakeLogRepo()})
	_, err := svc.Update(context.Background(), "log-1", models.UpdateActivityLogRequest{LogDate: strPtr("2025.03.02")})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLogServiceDelete(t *testing.T) {
	repo := newFakeLogRepo()
	repo.byID["log-1"] = &models.ActivityLog{ID: "log-1", StudentID: "stu-1"}
	cache := &fakeCacheInvalidator{}
	svc := NewLogService(LogServiceParams{Repo: repo, Cache: cache})

	require.NoError(t, svc.Delete(context.Background(), "log-1"))
	assert.Equal(t, []string{"log-1"}, repo.deleted)
	assert.Equal(t, []string{"dashboard:stu-1:*"}, cache.patterns)

	err := svc.Delete(context.Background(), "log-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func exportTestRepo() *fakeLogRepo {
	repo := newFakeLogRepo()
	date := "2025-03-02"
	repo.byID["log-1"] = &models.ActivityLog{
		ID:             "log-1",
		StudentID:      "stu-1",
		LogDate:        &date,
		EmotionTag:     "기쁨",
		LogContent:     "집중해서 참여함",
		RelatedMetrics: json.RawMessage(`{"activity_name":"방울토마토 수확","activity_type":"수확"}`),
	}
	return repo
}

func TestLogServiceExportCSV(t *testing.T) {
	svc := NewLogService(LogServiceParams{Repo: exportTestRepo()})

	body, filename, contentType, err := svc.Export(context.Background(), models.ActivityLogFilter{StudentID: "stu-1"}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "activity-logs-stu-1.csv", filename)
	assert.Equal(t, "text/csv; charset=utf-8", contentType)

	csv := string(body)
	assert.Contains(t, csv, "date,activity,category,activity_type,emotion,comment")
	assert.Contains(t, csv, "2025-03-02")
	assert.Contains(t, csv, "방울토마토 수확")
	assert.Contains(t, csv, "기쁨")
}

func TestLogServiceExportPDF(t *testing.T) {
	svc := NewLogService(LogServiceParams{Repo: exportTestRepo()})

	body, filename, contentType, err := svc.Export(context.Background(), models.ActivityLogFilter{StudentID: "stu-1"}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "activity-logs-stu-1.pdf", filename)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestLogServiceExportDefaultsToCSV(t *testing.T) {
	svc := NewLogService(LogServiceParams{Repo: exportTestRepo()})

	_, filename, contentType, err := svc.Export(context.Background(), models.ActivityLogFilter{StudentID: "stu-1"}, "")
	require.NoError(t, err)
	assert.Equal(t, "activity-logs-stu-1.csv", filename)
	assert.Equal(t, "text/csv; charset=utf-8", contentType)
}

func TestLogServiceExportRejectsUnknownFormat(t *testing.T) {
	svc := NewLogService(LogServiceParams{Repo: exportTestRepo()})
	_, _, _, err := svc.Export(context.Background(), models.ActivityLogFilter{StudentID: "stu-1"}, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLogServiceExportRequiresStudent(t *testing.T) {
	svc := NewLogService(LogServiceParams{Repo: newFakeLogRepo()})
	_, _, _, err := svc.Export(context.Background(), models.ActivityLogFilter{}, "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
