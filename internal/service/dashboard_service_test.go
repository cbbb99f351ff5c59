package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/models"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
)

type stubCacheRepo struct {
	entries  map[string][]byte
	setCalls int
}

func newStubCacheRepo() *stubCacheRepo {
	return &stubCacheRepo{entries: map[string][]byte{}}
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.entries[key] = raw
	s.setCalls++
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range s.entries {
		if matchSimplePattern(pattern, key) {
			delete(s.entries, key)
		}
	}
	return nil
}

func matchSimplePattern(pattern, key string) bool {
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(key) >= len(prefix) && key[:len(prefix)] == prefix
	}
	return pattern == key
}

type fakeStudentLookup struct {
	students map[string]*models.Student
}

func (f *fakeStudentLookup) GetByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

type fakeLogLister struct {
	logs []models.ActivityLog
	last models.ActivityLogFilter
	err  error
}

func (f *fakeLogLister) ListByStudent(_ context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, error) {
	f.last = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.logs, nil
}

func dashboardTestLogs() []models.ActivityLog {
	date1 := "2025-03-02"
	date2 := "2025-03-03"
	return []models.ActivityLog{
		{
			ID:             "log-1",
			StudentID:      "stu-1",
			LogDate:        &date1,
			EmotionTag:     "기쁨",
			ActivityTags:   json.RawMessage(`["수확"]`),
			LogContent:     "방울토마토 수확",
			RelatedMetrics: json.RawMessage(`{"activity_name":"방울토마토 수확","minutes":40}`),
		},
		{
			ID:             "log-2",
			StudentID:      "stu-1",
			LogDate:        &date2,
			EmotionTag:     "기쁨",
			ActivityTags:   json.RawMessage(`["관찰"]`),
			LogContent:     "새싹 관찰",
			RelatedMetrics: json.RawMessage(`{"activity_name":"새싹 관찰"}`),
		},
	}
}

func TestDashboardServiceView_AggregatesAndCaches(t *testing.T) {
	cacheRepo := newStubCacheRepo()
	cacheSvc := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	logs := &fakeLogLister{logs: dashboardTestLogs()}
	svc := NewDashboardService(DashboardServiceParams{
		Logs:     logs,
		Students: &fakeStudentLookup{students: map[string]*models.Student{"stu-1": {ID: "stu-1", Name: "민준"}}},
		Cache:    cacheSvc,
		Logger:   zap.NewNop(),
	})

	ctx := context.Background()
	view, hit, err := svc.View(ctx, DashboardQuery{StudentID: "stu-1", From: "2025-03-01", To: "2025-03-31"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, view.RecordCount)
	require.Len(t, view.EmotionDistribution, 1)
	assert.Equal(t, "기쁨", view.EmotionDistribution[0].Name)
	assert.Equal(t, 100, view.EmotionDistribution[0].Value)
	require.Len(t, view.ActivitySeries, 2)
	assert.Equal(t, 40, view.ActivitySeries[0].Minutes)
	assert.Equal(t, 30, view.ActivitySeries[1].Minutes)
	assert.Equal(t, "2025-03-01", logs.last.From)

	cached, hit2, err := svc.View(ctx, DashboardQuery{StudentID: "stu-1", From: "2025-03-01", To: "2025-03-31"})
	require.NoError(t, err)
	assert.True(t, hit2)
	assert.Equal(t, view, cached)
	assert.Equal(t, 1, cacheRepo.setCalls)
}

func TestDashboardServiceView_RecordsDBQueryMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewDashboardService(DashboardServiceParams{
		Logs:     &fakeLogLister{logs: dashboardTestLogs()},
		Students: &fakeStudentLookup{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}},
		Metrics:  metrics,
		Logger:   zap.NewNop(),
	})

	_, _, err := svc.View(context.Background(), DashboardQuery{StudentID: "stu-1", From: "2025-03-01", To: "2025-03-31"})
	require.NoError(t, err)

	snapshot := metrics.Snapshot()
	assert.EqualValues(t, 2, snapshot.DBQueryCount)
}

func TestDashboardServiceView_DefaultsRange(t *testing.T) {
	logs := &fakeLogLister{}
	svc := NewDashboardService(DashboardServiceParams{
		Logs:     logs,
		Students: &fakeStudentLookup{students: map[string]*models.Student{"stu-1": {ID: "stu-1"}}},
		Logger:   zap.NewNop(),
	})
	svc.now = func() time.Time { return time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC) }

	view, hit, err := svc.View(context.Background(), DashboardQuery{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 0, view.RecordCount)
	assert.Equal(t, "2025-03-01", logs.last.From)
	assert.Equal(t, "2025-03-31", logs.last.To)
}

func TestDashboardServiceView_Validation(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{})

	_, _, err := svc.View(context.Background(), DashboardQuery{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.View(context.Background(), DashboardQuery{StudentID: "stu-1", From: "03/01/2025"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, _, err = svc.View(context.Background(), DashboardQuery{StudentID: "stu-1", From: "2025-04-01", To: "2025-03-01"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDashboardServiceView_UnknownStudent(t *testing.T) {
	svc := NewDashboardService(DashboardServiceParams{
		Logs:     &fakeLogLister{},
		Students: &fakeStudentLookup{students: map[string]*models.Student{}},
	})
	_, _, err := svc.View(context.Background(), DashboardQuery{StudentID: "missing", From: "2025-03-01", To: "2025-03-31"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
