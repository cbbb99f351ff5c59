package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saessak-edu/saessak-api/internal/analysis"
	"github.com/saessak-edu/saessak-api/internal/models"
	"github.com/saessak-edu/saessak-api/internal/service"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
	"github.com/saessak-edu/saessak-api/pkg/response"
)

// UploadHandler exposes document intake and extraction endpoints.
type UploadHandler struct {
	uploads    *service.UploadService
	extraction *service.ExtractionService
	logs       *service.LogService
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(uploads *service.UploadService, extraction *service.ExtractionService, logs *service.LogService) *UploadHandler {
	return &UploadHandler{uploads: uploads, extraction: extraction, logs: logs}
}

// Create godoc
// @Summary Upload an activity document
// @Tags Uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF or plain-text document"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /uploads [post]
func (h *UploadHandler) Create(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file field is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}
	defer file.Close() //nolint:errcheck

	uploadedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		uploadedBy = claims.UserID
	}

	upload, err := h.uploads.Store(c.Request.Context(), service.StoreUploadParams{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		SizeBytes:   fileHeader.Size,
		Reader:      file,
		UploadedBy:  uploadedBy,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, upload)
}

// List godoc
// @Summary List uploads
// @Tags Uploads
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /uploads [get]
func (h *UploadHandler) List(c *gin.Context) {
	var filter models.UploadFilter
	if status := c.Query("status"); status != "" {
		s := models.UploadStatus(status)
		filter.Status = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	uploads, pagination, err := h.uploads.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, uploads, pagination)
}

// Get godoc
// @Summary Get upload
// @Tags Uploads
// @Produce json
// @Param id path string true "Upload ID"
// @Success 200 {object} response.Envelope
// @Router /uploads/{id} [get]
func (h *UploadHandler) Get(c *gin.Context) {
	upload, err := h.uploads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, upload, nil)
}

type extractRequest struct {
	RawText string `json:"raw_text"`
}

type extractResponse struct {
	Upload  *models.Upload              `json:"upload"`
	Records []analysis.ActivityAnalysis `json:"records"`
}

// Extract godoc
// @Summary Extract structured records from an upload
// @Description Plain-text uploads are read directly. PDF uploads require
// @Description client-supplied raw_text in the request body.
// @Tags Uploads
// @Accept json
// @Produce json
// @Param id path string true "Upload ID"
// @Param payload body extractRequest false "Optional raw text override"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /uploads/{id}/extract [post]
func (h *UploadHandler) Extract(c *gin.Context) {
	var req extractRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}

	upload, text, err := h.uploads.RawText(c.Request.Context(), c.Param("id"), req.RawText)
	if err != nil {
		response.Error(c, err)
		return
	}
	records, err := h.extraction.ExtractRecords(c.Request.Context(), text)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, extractResponse{Upload: upload, Records: records}, nil)
}

type commitLogsRequest struct {
	StudentID string                      `json:"student_id"`
	Records   []analysis.ActivityAnalysis `json:"records"`
}

// CommitLogs godoc
// @Summary Persist reviewed records as activity logs
// @Tags Uploads
// @Accept json
// @Produce json
// @Param id path string true "Upload ID"
// @Param payload body commitLogsRequest true "Student and reviewed records"
// @Success 201 {object} response.Envelope
// @Router /uploads/{id}/logs [post]
func (h *UploadHandler) CommitLogs(c *gin.Context) {
	var req commitLogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	uploadID := c.Param("id")
	if _, err := h.uploads.Get(c.Request.Context(), uploadID); err != nil {
		response.Error(c, err)
		return
	}

	logs, err := h.logs.CreateBatch(c.Request.Context(), req.StudentID, &uploadID, req.Records)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.uploads.MarkLogged(c.Request.Context(), uploadID); err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, logs)
}
