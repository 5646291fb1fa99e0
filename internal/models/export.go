package models

import "time"

// ExportFormat names a supported roster report format.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ExportStatus tracks an export job through its lifecycle.
type ExportStatus string

const (
	ExportQueued     ExportStatus = "queued"
	ExportProcessing ExportStatus = "processing"
	ExportCompleted  ExportStatus = "completed"
	ExportFailed     ExportStatus = "failed"
)

// ExportJob is one asynchronous roster report request. The download token
// is a signed reference to the generated file, valid until ExpiresAt.
type ExportJob struct {
	ID            string       `json:"id"`
	Format        ExportFormat `json:"format"`
	Status        ExportStatus `json:"status"`
	FileName      string       `json:"file_name,omitempty"`
	DownloadToken string       `json:"download_token,omitempty"`
	RequestedBy   string       `json:"requested_by"`
	CreatedAt     time.Time    `json:"created_at"`
	CompletedAt   time.Time    `json:"completed_at,omitempty"`
	ExpiresAt     time.Time    `json:"expires_at,omitempty"`
	Error         string       `json:"error,omitempty"`
}
