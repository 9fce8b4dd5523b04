package models

import "time"

// Subject represents an academic subject with its weekly scheduling demand.
type Subject struct {
	ID             string    `db:"id" json:"id"`
	SchoolID       string    `db:"school_id" json:"school_id"`
	Code           string    `db:"code" json:"code"`
	Name           string    `db:"name" json:"name"`
	PeriodsPerWeek int       `db:"periods_per_week" json:"periods_per_week"`
	Consecutive    bool      `db:"consecutive" json:"consecutive"`
	BlockLength    int       `db:"block_length" json:"block_length"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveBlockLength normalises the run length for non-consecutive subjects.
func (s Subject) EffectiveBlockLength() int {
	if !s.Consecutive || s.BlockLength < 1 {
		return 1
	}
	return s.BlockLength
}
