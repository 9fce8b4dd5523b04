package models

import "time"

// ExportFormat enumerates supported candidate export formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportStatus captures background export job lifecycle states.
type ExportStatus string

const (
	ExportStatusQueued     ExportStatus = "QUEUED"
	ExportStatusProcessing ExportStatus = "PROCESSING"
	ExportStatusFinished   ExportStatus = "FINISHED"
	ExportStatusFailed     ExportStatus = "FAILED"
)

// ExportJob persists the metadata of an asynchronous candidate export.
// FilePath is the storage-relative location used for cleanup; ResultURL is
// the signed download link handed to clients.
type ExportJob struct {
	ID           string       `db:"id" json:"id"`
	CandidateID  string       `db:"candidate_id" json:"candidate_id"`
	SchoolID     string       `db:"school_id" json:"school_id"`
	Format       ExportFormat `db:"format" json:"format"`
	Status       ExportStatus `db:"status" json:"status"`
	FilePath     *string      `db:"file_path" json:"-"`
	ResultURL    *string      `db:"result_url" json:"result_url,omitempty"`
	RequestedBy  string       `db:"requested_by" json:"requested_by"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time   `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string      `db:"error_message" json:"error_message,omitempty"`
}
