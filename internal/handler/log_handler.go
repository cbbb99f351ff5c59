package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saessak-edu/saessak-api/internal/models"
	"github.com/saessak-edu/saessak-api/internal/service"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
	"github.com/saessak-edu/saessak-api/pkg/response"
)

// LogHandler exposes activity log endpoints.
type LogHandler struct {
	logs *service.LogService
}

// NewLogHandler constructs LogHandler.
func NewLogHandler(logs *service.LogService) *LogHandler {
	return &LogHandler{logs: logs}
}

// List godoc
// @Summary List activity logs for a student
// @Tags Logs
// @Produce json
// @Param studentId query string true "Student ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /logs [get]
func (h *LogHandler) List(c *gin.Context) {
	filter := models.ActivityLogFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
	logs, err := h.logs.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Export godoc
// @Summary Export a student's activity logs as CSV or PDF
// @Tags Logs
// @Produce text/csv
// @Produce application/pdf
// @Param studentId query string true "Student ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param format query string false "Export format: csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /logs/export [get]
func (h *LogHandler) Export(c *gin.Context) {
	filter := models.ActivityLogFilter{
		StudentID: strings.TrimSpace(c.Query("studentId")),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
	body, filename, contentType, err := h.logs.Export(c.Request.Context(), filter, strings.ToLower(c.DefaultQuery("format", "csv")))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.Data(http.StatusOK, contentType, body)
}

// Get godoc
// @Summary Get activity log
// @Tags Logs
// @Produce json
// @Param id path string true "Log ID"
// @Success 200 {object} response.Envelope
// @Router /logs/{id} [get]
func (h *LogHandler) Get(c *gin.Context) {
	log, err := h.logs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}

// Update godoc
// @Summary Update activity log
// @Tags Logs
// @Accept json
// @Produce json
// @Param id path string true "Log ID"
// @Param payload body models.UpdateActivityLogRequest true "Editable fields"
// @Success 200 {object} response.Envelope
// @Router /logs/{id} [put]
func (h *LogHandler) Update(c *gin.Context) {
	var req models.UpdateActivityLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	log, err := h.logs.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, log, nil)
}

// Delete godoc
// @Summary Delete activity log
// @Tags Logs
// @Param id path string true "Log ID"
// @Success 204
// @Router /logs/{id} [delete]
func (h *LogHandler) Delete(c *gin.Context) {
	if err := h.logs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
