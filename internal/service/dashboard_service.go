package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/analysis"
	"github.com/saessak-edu/saessak-api/internal/models"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
)

type dashboardLogLister interface {
	ListByStudent(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, error)
}

// DashboardQuery selects the logs aggregated into a dashboard view.
type DashboardQuery struct {
	StudentID string
	From      string
	To        string
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Logs     dashboardLogLister
	Students studentLookup
	Cache    *CacheService
	Metrics  *MetricsService
	Logger   *zap.Logger
	CacheTTL time.Duration
}

// DashboardService composes per-student dashboard views from activity logs.
type DashboardService struct {
	logs     dashboardLogLister
	students studentLookup
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DashboardService{
		logs:     params.Logs,
		students: params.Students,
		cache:    params.Cache,
		metrics:  params.Metrics,
		logger:   logger,
		cacheTTL: ttl,
		now:      time.Now,
	}
}

// View returns the aggregated dashboard for one student and indicates cache
// utilisation. An empty range defaults to the trailing 30 days.
func (s *DashboardService) View(ctx context.Context, query DashboardQuery) (*analysis.DashboardView, bool, error) {
	if query.StudentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if query.From != "" && !analysis.IsCalendarDate(query.From) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD")
	}
	if query.To != "" && !analysis.IsCalendarDate(query.To) {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD")
	}
	if query.From == "" && query.To == "" {
		end := s.now().UTC()
		query.To = end.Format("2006-01-02")
		query.From = end.AddDate(0, 0, -30).Format("2006-01-02")
	}
	if query.From != "" && query.To != "" && query.From > query.To {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}

	start := time.Now()
	if _, err := s.students.GetByID(ctx, query.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("dashboard_student", time.Since(start))
	}

	cacheKey := DashboardKey(query.StudentID, query.From, query.To)
	if s.cache != nil {
		var cached analysis.DashboardView
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		} else if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}

	start = time.Now()
	logs, err := s.logs.ListByStudent(ctx, models.ActivityLogFilter{
		StudentID: query.StudentID,
		From:      query.From,
		To:        query.To,
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load logs")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("dashboard_logs", time.Since(start))
	}

	view := analysis.Aggregate(logs)
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, view, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return &view, false, nil
}
