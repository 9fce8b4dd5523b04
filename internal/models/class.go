package models

import "time"

// Class represents an academic class or section.
type Class struct {
	ID           string    `db:"id" json:"id"`
	SchoolID     string    `db:"school_id" json:"school_id"`
	Name         string    `db:"name" json:"name"`
	Grade        string    `db:"grade" json:"grade"`
	StudentCount int       `db:"student_count" json:"student_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSubject is a curriculum row: the class must receive this subject's
// full weekly period count in every generated timetable.
type ClassSubject struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
