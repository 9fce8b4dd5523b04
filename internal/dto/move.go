package dto

import "github.com/noah-isme/eduschedule-api/internal/models"

// MoveRequest captures a drag-and-drop relocation of one assignment.
type MoveRequest struct {
	AssignmentID string `json:"assignmentId" validate:"required"`
	Day          int    `json:"day" validate:"min=0,max=6"`
	Period       int    `json:"period" validate:"min=0,max=15"`
}

// MoveDecisionResponse reports whether the move passes every hard
// constraint, and which one failed when it does not.
type MoveDecisionResponse struct {
	Accepted   bool               `json:"accepted"`
	Applied    bool               `json:"applied"`
	Constraint string             `json:"constraint,omitempty"`
	Message    string             `json:"message,omitempty"`
	Conflict   *models.Assignment `json:"conflict,omitempty"`
}
