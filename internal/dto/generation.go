package dto

import (
	"time"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// GenerateRequest captures POST /timetables/:id/generate payload. Zero
// values fall back to the configured defaults.
type GenerateRequest struct {
	MaxSolutions      int `json:"maxSolutions" validate:"omitempty,min=1,max=10"`
	TimeBudgetSeconds int `json:"timeBudgetSeconds" validate:"omitempty,min=5,max=1800"`
}

// GenerationJobResponse is returned after enqueueing a run.
type GenerationJobResponse struct {
	ID          string                  `json:"id"`
	TimetableID string                  `json:"timetableId"`
	Status      models.GenerationStatus `json:"status"`
	Progress    int                     `json:"progress"`
	Phase       string                  `json:"phase"`
}

// GenerationStatusResponse exposes job progress and, once terminal, the
// outcome record.
type GenerationStatusResponse struct {
	ID          string                    `json:"id"`
	TimetableID string                    `json:"timetableId"`
	Status      models.GenerationStatus   `json:"status"`
	Progress    int                       `json:"progress"`
	Phase       string                    `json:"phase"`
	Outcome     *models.GenerationOutcome `json:"outcome,omitempty"`
	Error       *string                   `json:"error,omitempty"`
	CreatedAt   time.Time                 `json:"createdAt"`
	StartedAt   *time.Time                `json:"startedAt,omitempty"`
	FinishedAt  *time.Time                `json:"finishedAt,omitempty"`
}
