package models

import "time"

// ReportFormat enumerates supported narrative report formats.
type ReportFormat string

const (
	ReportFormatMarkdown ReportFormat = "markdown"
	ReportFormatPDF      ReportFormat = "pdf"
)

// ReportStatus captures background job lifecycle states.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJob is a persisted narrative-report generation job for one student
// over a date range.
type ReportJob struct {
	ID           string       `db:"id" json:"id"`
	StudentID    string       `db:"student_id" json:"student_id"`
	FromDate     string       `db:"from_date" json:"from_date"`
	ToDate       string       `db:"to_date" json:"to_date"`
	Format       ReportFormat `db:"format" json:"format"`
	Status       ReportStatus `db:"status" json:"status"`
	FilePath     *string      `db:"file_path" json:"-"`
	DownloadURL  *string      `db:"-" json:"download_url,omitempty"`
	CreatedBy    string       `db:"created_by" json:"created_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
}

// CreateReportRequest enqueues a narrative report.
type CreateReportRequest struct {
	StudentID string       `json:"student_id" validate:"required"`
	From      string       `json:"from" validate:"required"`
	To        string       `json:"to" validate:"required"`
	Format    ReportFormat `json:"format" validate:"omitempty,oneof=markdown pdf"`
}
