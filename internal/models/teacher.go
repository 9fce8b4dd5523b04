package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ConstraintsVersion is the only accepted schema version for teacher constraints.
const ConstraintsVersion = 1

// Teacher represents an instructor record.
type Teacher struct {
	ID          string             `db:"id" json:"id"`
	SchoolID    string             `db:"school_id" json:"school_id"`
	Email       string             `db:"email" json:"email"`
	FullName    string             `db:"full_name" json:"full_name"`
	Active      bool               `db:"active" json:"active"`
	Constraints TeacherConstraints `db:"constraints" json:"constraints"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// TeacherConstraints is the closed, versioned scheduling profile of a teacher.
// It replaces free-form preference blobs: every field the solver honours is
// declared here and unknown versions are rejected at load time.
type TeacherConstraints struct {
	Version          int              `json:"version"`
	Availability     AvailabilityGrid `json:"availability"`
	PrefersMorning   bool             `json:"prefers_morning"`
	PrefersAfternoon bool             `json:"prefers_afternoon"`
	AvoidLastPeriod  bool             `json:"avoid_last_period"`
	MaxDailyLoad     int              `json:"max_daily_load"`
	MaxWeeklyLoad    int              `json:"max_weekly_load"`
	PreferredDays    []int            `json:"preferred_days,omitempty"`
	AvoidedDays      []int            `json:"avoided_days,omitempty"`
}

// AvailabilityGrid lists the periods a teacher can teach per day.
// A day absent from the map means the teacher is unavailable that day;
// an empty grid means available everywhere.
type AvailabilityGrid struct {
	Days map[int][]int `json:"days,omitempty"`
}

// Unrestricted reports whether the grid places no limits at all.
func (g AvailabilityGrid) Unrestricted() bool {
	return len(g.Days) == 0
}

// Allows reports whether the teacher may teach in the given slot.
func (g AvailabilityGrid) Allows(day, period int) bool {
	if g.Unrestricted() {
		return true
	}
	periods, ok := g.Days[day]
	if !ok {
		return false
	}
	for _, p := range periods {
		if p == period {
			return true
		}
	}
	return false
}

// Value marshals constraints to JSON for persistence.
func (c TeacherConstraints) Value() (driver.Value, error) {
	if c.Version == 0 {
		c.Version = ConstraintsVersion
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal teacher constraints: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the constraints struct.
func (c *TeacherConstraints) Scan(value interface{}) error {
	if value == nil {
		*c = TeacherConstraints{Version: ConstraintsVersion}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for TeacherConstraints", value)
	}
	if len(data) == 0 {
		*c = TeacherConstraints{Version: ConstraintsVersion}
		return nil
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("unmarshal teacher constraints: %w", err)
	}
	return nil
}

// TeacherSubject marks a teacher as qualified to teach a subject.
type TeacherSubject struct {
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
