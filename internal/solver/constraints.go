package solver

// Constraint codes attached to prune counters and move rejections.
const (
	ConstraintTeacherBusy        = "teacher_conflict"
	ConstraintRoomBusy           = "room_conflict"
	ConstraintClassBusy          = "class_conflict"
	ConstraintRoomCapacity       = "room_capacity"
	ConstraintQualification      = "teacher_unqualified"
	ConstraintAvailability       = "teacher_unavailable"
	ConstraintBlockIntegrity     = "block_broken"
	ConstraintSlotOutOfRange     = "invalid_slot"
	ConstraintSymmetry           = "symmetry"
	ConstraintUnknownAssignment  = "unknown_assignment"
	ConstraintPeriodsPerWeekMiss = "periods_per_week"
)

// occupancy tracks which slots each teacher, room and class hold during the
// search. Place and unplace are exact inverses.
type occupancy struct {
	teacher []bitset
	room    []bitset
	class   []bitset
}

func newOccupancy(s *Snapshot) *occupancy {
	slots := s.grid.Slots()
	o := &occupancy{
		teacher: make([]bitset, len(s.teachers)),
		room:    make([]bitset, len(s.rooms)),
		class:   make([]bitset, len(s.classes)),
	}
	for i := range o.teacher {
		o.teacher[i] = newBitset(slots)
	}
	for i := range o.room {
		o.room[i] = newBitset(slots)
	}
	for i := range o.class {
		o.class[i] = newBitset(slots)
	}
	return o
}

// free reports whether every slot of the run is open for the trio, and names
// the first constraint blocking it otherwise.
func (o *occupancy) free(teacher, room, class, startSlot, length int) (bool, string) {
	for off := 0; off < length; off++ {
		slot := startSlot + off
		if o.teacher[teacher].has(slot) {
			return false, ConstraintTeacherBusy
		}
		if o.room[room].has(slot) {
			return false, ConstraintRoomBusy
		}
		if o.class[class].has(slot) {
			return false, ConstraintClassBusy
		}
	}
	return true, ""
}

func (o *occupancy) place(teacher, room, class, startSlot, length int) {
	for off := 0; off < length; off++ {
		slot := startSlot + off
		o.teacher[teacher].set(slot)
		o.room[room].set(slot)
		o.class[class].set(slot)
	}
}

func (o *occupancy) unplace(teacher, room, class, startSlot, length int) {
	for off := 0; off < length; off++ {
		slot := startSlot + off
		o.teacher[teacher].clear(slot)
		o.room[room].clear(slot)
		o.class[class].clear(slot)
	}
}
