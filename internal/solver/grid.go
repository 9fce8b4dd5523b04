package solver

import (
	"fmt"
	"math/bits"
)

// DefaultDays and DefaultPeriodsPerDay describe the standard school week.
const (
	DefaultDays          = 5
	DefaultPeriodsPerDay = 8
)

// Grid fixes the shape of the weekly timetable shared by all schools.
type Grid struct {
	Days          int
	PeriodsPerDay int
}

// NewGrid normalises non-positive dimensions to the platform defaults.
func NewGrid(days, periodsPerDay int) Grid {
	if days <= 0 {
		days = DefaultDays
	}
	if periodsPerDay <= 0 {
		periodsPerDay = DefaultPeriodsPerDay
	}
	return Grid{Days: days, PeriodsPerDay: periodsPerDay}
}

// Slots returns the total number of period cells in the week.
func (g Grid) Slots() int {
	return g.Days * g.PeriodsPerDay
}

// Slot maps (day, period) coordinates onto a flat index.
func (g Grid) Slot(day, period int) int {
	return day*g.PeriodsPerDay + period
}

// Coords is the inverse of Slot.
func (g Grid) Coords(slot int) (day, period int) {
	return slot / g.PeriodsPerDay, slot % g.PeriodsPerDay
}

// Contains reports whether the coordinates fall inside the grid.
func (g Grid) Contains(day, period int) bool {
	return day >= 0 && day < g.Days && period >= 0 && period < g.PeriodsPerDay
}

// LastPeriod is the index of the final period of each day.
func (g Grid) LastPeriod() int {
	return g.PeriodsPerDay - 1
}

// MorningEnd is the first afternoon period.
func (g Grid) MorningEnd() int {
	return g.PeriodsPerDay / 2
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%d", g.Days, g.PeriodsPerDay)
}

// bitset is a fixed-size bit vector indexed by slot.
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int) {
	b[i>>6] |= 1 << (uint(i) & 63)
}

func (b bitset) clear(i int) {
	b[i>>6] &^= 1 << (uint(i) & 63)
}

func (b bitset) has(i int) bool {
	return b[i>>6]&(1<<(uint(i)&63)) != 0
}

func (b bitset) count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b bitset) clone() bitset {
	out := make(bitset, len(b))
	copy(out, b)
	return out
}
