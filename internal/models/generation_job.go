package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// GenerationStatus captures the generation job lifecycle.
type GenerationStatus string

const (
	GenerationStatusQueued     GenerationStatus = "queued"
	GenerationStatusRunning    GenerationStatus = "running"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusInfeasible GenerationStatus = "infeasible"
	GenerationStatusTimedOut   GenerationStatus = "timed_out"
	GenerationStatusCancelled  GenerationStatus = "cancelled"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s GenerationStatus) Terminal() bool {
	switch s {
	case GenerationStatusCompleted, GenerationStatusInfeasible, GenerationStatusTimedOut,
		GenerationStatusCancelled, GenerationStatusFailed:
		return true
	}
	return false
}

// InfeasibilityReason classifies why a (class, subject) pair cannot be scheduled.
type InfeasibilityReason string

const (
	InfeasibilityNoQualifiedTeacher InfeasibilityReason = "no_qualified_teacher"
	InfeasibilityNoFittingRoom      InfeasibilityReason = "no_fitting_room"
	InfeasibilityInsufficientSlots  InfeasibilityReason = "insufficient_slots"
	InfeasibilitySearchExhausted    InfeasibilityReason = "search_exhausted"
)

// InfeasibilityRecord names the offending pair so schools can fix their data.
type InfeasibilityRecord struct {
	ClassID   string              `json:"class_id"`
	ClassName string              `json:"class_name,omitempty"`
	SubjectID string              `json:"subject_id"`
	Subject   string              `json:"subject_name,omitempty"`
	Reason    InfeasibilityReason `json:"reason"`
	Detail    string              `json:"detail,omitempty"`
}

// GenerationOutcome is the persisted result envelope of a finished job.
type GenerationOutcome struct {
	Infeasibilities []InfeasibilityRecord `json:"infeasibilities,omitempty"`
	DominantPrune   string                `json:"dominant_prune,omitempty"`
	NodesExplored   int64                 `json:"nodes_explored"`
	Backtracks      int64                 `json:"backtracks"`
	SolutionsFound  int                   `json:"solutions_found"`
	CandidatesKept  int                   `json:"candidates_kept"`
	SolveSeconds    float64               `json:"solve_seconds"`
	Partial         bool                  `json:"partial,omitempty"`
}

// Value marshals the outcome to JSON for persistence.
func (o GenerationOutcome) Value() (driver.Value, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal generation outcome: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the outcome struct.
func (o *GenerationOutcome) Scan(value interface{}) error {
	if value == nil {
		*o = GenerationOutcome{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for GenerationOutcome", value)
	}
	if len(data) == 0 {
		*o = GenerationOutcome{}
		return nil
	}
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("unmarshal generation outcome: %w", err)
	}
	return nil
}

// GenerationJob is a persisted solver run for a timetable.
type GenerationJob struct {
	ID                string            `db:"id" json:"id"`
	TimetableID       string            `db:"timetable_id" json:"timetable_id"`
	SchoolID          string            `db:"school_id" json:"school_id"`
	Status            GenerationStatus  `db:"status" json:"status"`
	Progress          int               `db:"progress" json:"progress"`
	Phase             string            `db:"phase" json:"phase"`
	MaxSolutions      int               `db:"max_solutions" json:"max_solutions"`
	TimeBudgetSeconds int               `db:"time_budget_seconds" json:"time_budget_seconds"`
	RequestedBy       string            `db:"requested_by" json:"requested_by"`
	Outcome           GenerationOutcome `db:"outcome" json:"outcome"`
	ErrorMessage      *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedAt         time.Time         `db:"created_at" json:"created_at"`
	StartedAt         *time.Time        `db:"started_at" json:"started_at,omitempty"`
	FinishedAt        *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
}
