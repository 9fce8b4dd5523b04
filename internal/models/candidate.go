package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Candidate is one complete timetable produced by a generation run,
// ranked against its siblings from the same run.
type Candidate struct {
	ID          string           `db:"id" json:"id"`
	TimetableID string           `db:"timetable_id" json:"timetable_id"`
	Rank        int              `db:"rank" json:"rank"`
	Score       float64          `db:"score" json:"score"`
	Metrics     CandidateMetrics `db:"metrics" json:"metrics"`
	Fingerprint string           `db:"fingerprint" json:"-"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// CandidateMetrics breaks down how a candidate earned its score.
type CandidateMetrics struct {
	TotalAssignments     int     `json:"total_assignments"`
	ScheduledPeriods     int     `json:"scheduled_periods"`
	TeachersUsed         int     `json:"teachers_used"`
	RoomsUsed            int     `json:"rooms_used"`
	GapCount             int     `json:"gap_count"`
	PreferenceViolations int     `json:"preference_violations"`
	LastPeriodViolations int     `json:"last_period_violations"`
	WorkloadStdev        float64 `json:"teacher_workload_stdev"`
	TotalScore           float64 `json:"total_score"`
}

// Value marshals metrics to JSON for persistence.
func (m CandidateMetrics) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal candidate metrics: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the metrics struct.
func (m *CandidateMetrics) Scan(value interface{}) error {
	if value == nil {
		*m = CandidateMetrics{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for CandidateMetrics", value)
	}
	if len(data) == 0 {
		*m = CandidateMetrics{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal candidate metrics: %w", err)
	}
	return nil
}

// Assignment is one occupied period cell inside a candidate.
// Consecutive blocks expand into one row per covered period.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	CandidateID string    `db:"candidate_id" json:"candidate_id"`
	TimetableID string    `db:"timetable_id" json:"timetable_id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	RoomID      string    `db:"room_id" json:"room_id"`
	Day         int       `db:"day" json:"day"`
	Period      int       `db:"period" json:"period"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AssignmentDetail joins display names for API responses and exports.
type AssignmentDetail struct {
	Assignment
	ClassName   string `db:"class_name" json:"class_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
	RoomName    string `db:"room_name" json:"room_name"`
}
