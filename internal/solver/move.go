package solver

import (
	"sort"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// MoveRequest asks to relocate one assignment of a candidate to a new slot.
type MoveRequest struct {
	AssignmentID string
	Day          int
	Period       int
}

// MoveDecision is the verdict of an incremental re-validation. A rejection
// names the violated constraint and, when one exists, the assignment already
// occupying the contested resource.
type MoveDecision struct {
	Accepted   bool               `json:"accepted"`
	Constraint string             `json:"constraint,omitempty"`
	Message    string             `json:"message,omitempty"`
	Conflict   *models.Assignment `json:"conflict,omitempty"`
}

func reject(constraint, message string, conflict *models.Assignment) MoveDecision {
	return MoveDecision{Constraint: constraint, Message: message, Conflict: conflict}
}

// ValidateMove re-checks only the constraints the destination cell touches.
// It never mutates its inputs: a rejected move leaves the candidate exactly
// as it was, so repeating the same request yields the same decision.
func ValidateMove(snap *Snapshot, assignments []models.Assignment, req MoveRequest) MoveDecision {
	var moved *models.Assignment
	for i := range assignments {
		if assignments[i].ID == req.AssignmentID {
			moved = &assignments[i]
			break
		}
	}
	if moved == nil {
		return reject(ConstraintUnknownAssignment, "Assignment not found in this candidate.", nil)
	}

	if !snap.grid.Contains(req.Day, req.Period) {
		return reject(ConstraintSlotOutOfRange, "Target slot is outside the timetable grid.", nil)
	}
	if moved.Day == req.Day && moved.Period == req.Period {
		return MoveDecision{Accepted: true}
	}

	ti, ok := snap.teacherIdx[moved.TeacherID]
	if !ok {
		return reject(ConstraintUnknownAssignment, "Assignment references a teacher missing from the school data.", nil)
	}
	ci, ok := snap.classIdx[moved.ClassID]
	if !ok {
		return reject(ConstraintUnknownAssignment, "Assignment references a class missing from the school data.", nil)
	}
	si, ok := snap.subjectIdx[moved.SubjectID]
	if !ok {
		return reject(ConstraintUnknownAssignment, "Assignment references a subject missing from the school data.", nil)
	}

	for i := range assignments {
		other := &assignments[i]
		if other.ID == moved.ID || other.Day != req.Day || other.Period != req.Period {
			continue
		}
		switch {
		case other.TeacherID == moved.TeacherID:
			return reject(ConstraintTeacherBusy, "Teacher has another class at this time.", other)
		case other.RoomID == moved.RoomID:
			return reject(ConstraintRoomBusy, "Room is already occupied at this time.", other)
		case other.ClassID == moved.ClassID:
			return reject(ConstraintClassBusy, "This class already has a lesson at this time.", other)
		}
	}

	if !snap.teachers[ti].available.has(snap.grid.Slot(req.Day, req.Period)) {
		return reject(ConstraintAvailability, "Teacher is not available at this time.", nil)
	}

	// Room and qualification are untouched by a slot-only move; the cheap
	// asserts below only catch school data that drifted since generation.
	if ri, ok := snap.roomIdx[moved.RoomID]; ok {
		if snap.rooms[ri].capacity < snap.classes[ci].students {
			return reject(ConstraintRoomCapacity, "Room is too small for this class.", nil)
		}
	}
	if pi, ok := snap.pairKey[[2]int{ci, si}]; ok {
		if !containsInt(snap.pairs[pi].teachers, ti) {
			return reject(ConstraintQualification, "Teacher is not qualified for this subject.", nil)
		}
	}

	if snap.subjects[si].consecutive {
		if !blocksSurviveMove(snap.subjects[si].blockLength, assignments, moved, req) {
			return reject(ConstraintBlockIntegrity, "Moving this lesson would break its consecutive block.", nil)
		}
	}

	return MoveDecision{Accepted: true}
}

// blocksSurviveMove simulates the move inside the (class, subject) group and
// verifies every day still decomposes into runs of the block length. Two
// blocks may sit back to back, so a maximal run is legal when its length is
// a multiple of blockLength.
func blocksSurviveMove(blockLength int, assignments []models.Assignment, moved *models.Assignment, req MoveRequest) bool {
	byDay := make(map[int][]int)
	for i := range assignments {
		a := &assignments[i]
		if a.ClassID != moved.ClassID || a.SubjectID != moved.SubjectID {
			continue
		}
		day, period := a.Day, a.Period
		if a.ID == moved.ID {
			day, period = req.Day, req.Period
		}
		byDay[day] = append(byDay[day], period)
	}

	for _, periods := range byDay {
		sort.Ints(periods)
		run := 1
		for i := 1; i <= len(periods); i++ {
			if i < len(periods) && periods[i] == periods[i-1]+1 {
				run++
				continue
			}
			if run%blockLength != 0 {
				return false
			}
			run = 1
		}
	}
	return true
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
