package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// TimetableStatus reflects the outcome of the most recent generation run.
type TimetableStatus string

const (
	TimetableStatusDraft      TimetableStatus = "draft"
	TimetableStatusGenerating TimetableStatus = "generating"
	TimetableStatusCompleted  TimetableStatus = "completed"
	TimetableStatusInfeasible TimetableStatus = "infeasible"
	TimetableStatusTimedOut   TimetableStatus = "timed_out"
	TimetableStatusCancelled  TimetableStatus = "cancelled"
	TimetableStatusFailed     TimetableStatus = "failed"
)

// Timetable is the container a generation run fills with ranked candidates.
type Timetable struct {
	ID                 string            `db:"id" json:"id"`
	SchoolID           string            `db:"school_id" json:"school_id"`
	Term               string            `db:"term" json:"term"`
	Name               string            `db:"name" json:"name"`
	Status             TimetableStatus   `db:"status" json:"status"`
	DefaultCandidateID *string           `db:"default_candidate_id" json:"default_candidate_id,omitempty"`
	GenerationMetrics  GenerationMetrics `db:"generation_metrics" json:"generation_metrics"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// GenerationMetrics summarises the last completed run for the timetable.
type GenerationMetrics struct {
	CandidateCount   int     `json:"candidate_count"`
	BestScore        float64 `json:"best_score"`
	ScheduledPeriods int     `json:"scheduled_periods"`
	TeachersUsed     int     `json:"teachers_used"`
	WorkloadStdev    float64 `json:"teacher_workload_stdev"`
	SolveSeconds     float64 `json:"solve_seconds"`
	NodesExplored    int64   `json:"nodes_explored"`
	Partial          bool    `json:"partial,omitempty"`
}

// Value marshals metrics to JSON for persistence.
func (m GenerationMetrics) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal generation metrics: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the metrics struct.
func (m *GenerationMetrics) Scan(value interface{}) error {
	if value == nil {
		*m = GenerationMetrics{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for GenerationMetrics", value)
	}
	if len(data) == 0 {
		*m = GenerationMetrics{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal generation metrics: %w", err)
	}
	return nil
}
