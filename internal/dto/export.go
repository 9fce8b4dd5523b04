package dto

import "github.com/noah-isme/eduschedule-api/internal/models"

// ExportRequest captures POST /candidates/:id/exports payload.
type ExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes export job metadata.
type ExportStatusResponse struct {
	ID          string              `json:"id"`
	Status      models.ExportStatus `json:"status"`
	DownloadURL *string             `json:"downloadUrl,omitempty"`
	Error       *string             `json:"error,omitempty"`
}
