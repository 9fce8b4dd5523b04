package dto

import (
	"time"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// CandidateDetailResponse bundles a candidate with its full lesson grid.
type CandidateDetailResponse struct {
	ID          string                    `json:"id"`
	TimetableID string                    `json:"timetableId"`
	Rank        int                       `json:"rank"`
	Score       float64                   `json:"score"`
	Metrics     models.CandidateMetrics   `json:"metrics"`
	CreatedAt   time.Time                 `json:"createdAt"`
	Assignments []models.AssignmentDetail `json:"assignments"`
}

// ExplanationResponse carries the generated ranking rationale.
type ExplanationResponse struct {
	CandidateID string    `json:"candidateId"`
	Explanation string    `json:"explanation"`
	GeneratedAt time.Time `json:"generatedAt"`
}
