package models

import "time"

// UploadStatus captures the lifecycle of an uploaded activity document.
type UploadStatus string

const (
	UploadStatusStored    UploadStatus = "STORED"
	UploadStatusExtracted UploadStatus = "EXTRACTED"
	UploadStatusLogged    UploadStatus = "LOGGED"
)

// Upload represents a source document (PDF or TXT) holding one or more
// activity records prior to extraction.
type Upload struct {
	ID          string       `db:"id" json:"id"`
	FileName    string       `db:"file_name" json:"file_name"`
	StoragePath string       `db:"storage_path" json:"-"`
	ContentType string       `db:"content_type" json:"content_type"`
	SizeBytes   int64        `db:"size_bytes" json:"size_bytes"`
	RawText     string       `db:"raw_text" json:"raw_text"`
	Status      UploadStatus `db:"status" json:"status"`
	UploadedBy  string       `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// UploadFilter drives upload listing.
type UploadFilter struct {
	Status   *UploadStatus
	Page     int
	PageSize int
}
