package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saessak-edu/saessak-api/internal/analysis"
	"github.com/saessak-edu/saessak-api/internal/middleware"
	"github.com/saessak-edu/saessak-api/internal/service"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
	"github.com/saessak-edu/saessak-api/pkg/response"
)

type dashboardService interface {
	View(ctx context.Context, query service.DashboardQuery) (*analysis.DashboardView, bool, error)
}

// DashboardHandler wires the dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// View godoc
// @Summary Per-student dashboard
// @Tags Dashboard
// @Produce json
// @Param studentId query string true "Student ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) View(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	query := service.DashboardQuery{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
	start := time.Now()
	view, cacheHit, err := h.service.View(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, view, nil, meta)
}
