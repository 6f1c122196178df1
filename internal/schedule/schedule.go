// Package schedule holds per-date slot occupancy.
package schedule

import (
	"errors"
	"fmt"
	"sort"

	"barbearia/internal/model"
	"barbearia/internal/timegrid"

	"github.com/google/uuid"
)

var ErrConflict = errors.New("slot already occupied")

// ConflictError names the first occupied slot that blocked a placement.
type ConflictError struct {
	Date     model.Date
	Slot     timegrid.Slot
	Label    string
	Occupant *model.Booking
}

func (e *ConflictError) Error() string {
	if e.Occupant != nil {
		return fmt.Sprintf("%s %s is taken by %s (%s)", e.Date.BR(), e.Label, e.Occupant.Client, e.Occupant.Service)
	}
	return fmt.Sprintf("%s %s is taken", e.Date.BR(), e.Label)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Day is the slot array of one date. A nil entry is a free slot; every slot of
// a run points to the same booking.
type Day struct {
	slots []*model.Booking
}

// Book maps dates to days. Days are created lazily and never removed.
type Book struct {
	grid *timegrid.Grid
	days map[model.Date]*Day
}

func NewBook(grid *timegrid.Grid) *Book {
	return &Book{grid: grid, days: make(map[model.Date]*Day)}
}

func (b *Book) Grid() *timegrid.Grid { return b.grid }

// Ensure returns the day for date, creating it with every slot free. A day
// stored under a shorter grid is padded with free slots.
func (b *Book) Ensure(date model.Date) *Day {
	d, ok := b.days[date]
	if !ok {
		d = &Day{slots: make([]*model.Booking, b.grid.Len())}
		b.days[date] = d
		return d
	}
	if len(d.slots) < b.grid.Len() {
		d.slots = append(d.slots, make([]*model.Booking, b.grid.Len()-len(d.slots))...)
	}
	return d
}

// Has reports whether the date was ever touched.
func (b *Book) Has(date model.Date) bool {
	_, ok := b.days[date]
	return ok
}

// Dates returns every known date in ascending order.
func (b *Book) Dates() []model.Date {
	out := make([]model.Date, 0, len(b.days))
	for d := range b.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Occupancy returns the booking holding slot, or nil when the slot is free.
func (b *Book) Occupancy(date model.Date, slot timegrid.Slot) (*model.Booking, error) {
	if !b.grid.Valid(slot) {
		return nil, fmt.Errorf("%w: %s", timegrid.ErrSlotNotFound, b.grid.Label(slot))
	}
	return b.Ensure(date).slots[slot], nil
}

// Occupants returns the distinct bookings found in run, in slot order.
func (b *Book) Occupants(date model.Date, run timegrid.Run) []*model.Booking {
	day := b.Ensure(date)
	var out []*model.Booking
	seen := make(map[*model.Booking]bool)
	for _, s := range run.Slots() {
		if !b.grid.Valid(s) {
			continue
		}
		if occ := day.slots[s]; occ != nil && !seen[occ] {
			seen[occ] = true
			out = append(out, occ)
		}
	}
	return out
}

// PlaceRun assigns every slot of run to booking and sets its start slot. It
// changes nothing unless all slots are free.
func (b *Book) PlaceRun(date model.Date, run timegrid.Run, booking *model.Booking) error {
	if !b.grid.Valid(run.Start) {
		return fmt.Errorf("%w: %s", timegrid.ErrSlotNotFound, b.grid.Label(run.Start))
	}
	if run.Count <= 0 || !b.grid.Valid(run.End()) {
		return fmt.Errorf("%w: %d slots from %s", timegrid.ErrOutOfRange, run.Count, b.grid.Label(run.Start))
	}

	day := b.Ensure(date)
	for _, s := range run.Slots() {
		if occ := day.slots[s]; occ != nil {
			return &ConflictError{Date: date, Slot: s, Label: b.grid.Label(s), Occupant: occ}
		}
	}

	booking.Start = run.Start
	for _, s := range run.Slots() {
		day.slots[s] = booking
	}
	return nil
}

// ClearRun frees every slot of run, whatever occupies it.
func (b *Book) ClearRun(date model.Date, run timegrid.Run) {
	day := b.Ensure(date)
	for _, s := range run.Slots() {
		if b.grid.Valid(s) {
			day.slots[s] = nil
		}
	}
}

// BookingsOn returns one entry per booking on date, ordered by start slot.
func (b *Book) BookingsOn(date model.Date) []*model.Booking {
	d, ok := b.days[date]
	if !ok {
		return nil
	}
	var out []*model.Booking
	for i, occ := range d.slots {
		if occ != nil && occ.Start == timegrid.Slot(i) {
			out = append(out, occ)
		}
	}
	return out
}

// Find locates a booking by identity.
func (b *Book) Find(id uuid.UUID) (model.Date, *model.Booking, bool) {
	for _, date := range b.Dates() {
		for _, bk := range b.BookingsOn(date) {
			if bk.ID == id {
				return date, bk, true
			}
		}
	}
	return model.Date{}, nil, false
}

// Clone deep-copies the book. Slots sharing a booking keep sharing its copy.
func (b *Book) Clone() *Book {
	out := NewBook(b.grid)
	copies := make(map[*model.Booking]*model.Booking)
	for date, d := range b.days {
		nd := &Day{slots: make([]*model.Booking, len(d.slots))}
		for i, occ := range d.slots {
			if occ == nil {
				continue
			}
			c, ok := copies[occ]
			if !ok {
				c = occ.Clone()
				copies[occ] = c
			}
			nd.slots[i] = c
		}
		out.days[date] = nd
	}
	return out
}
