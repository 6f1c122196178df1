package engine

import (
	"fmt"

	"barbearia/internal/model"
	"barbearia/internal/timegrid"
)

// SlotView is one row of a day listing.
type SlotView struct {
	Slot  timegrid.Slot
	Label string
	// Booking is nil for a free slot.
	Booking *model.Booking
	// Canonical is set on the first slot of a run.
	Canonical bool
}

func (v SlotView) Free() bool { return v.Booking == nil }

// Day lists every slot of date in grid order.
func (e *Engine) Day(date model.Date) []SlotView {
	e.mu.Lock()
	defer e.mu.Unlock()

	copies := make(map[*model.Booking]*model.Booking)
	out := make([]SlotView, e.grid.Len())
	for i := range out {
		s := timegrid.Slot(i)
		occ, _ := e.book.Occupancy(date, s)
		v := SlotView{Slot: s, Label: e.grid.Label(s)}
		if occ != nil {
			c, ok := copies[occ]
			if !ok {
				c = occ.Clone()
				copies[occ] = c
			}
			v.Booking = c
			v.Canonical = occ.Start == s
		}
		out[i] = v
	}
	return out
}

// BookingsOn returns one copy per booking on date, by start slot.
func (e *Engine) BookingsOn(date model.Date) []*model.Booking {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneAll(e.book.BookingsOn(date))
}

// Dates lists every date that has a day in the agenda.
func (e *Engine) Dates() []model.Date {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Dates()
}

// Lookup returns the booking occupying any slot of its run.
func (e *Engine) Lookup(date model.Date, slot timegrid.Slot) (*model.Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, err := e.resolve(date, slot)
	if err != nil {
		return nil, err
	}
	return b.Clone(), nil
}

// FreeSlots lists the free slots of date.
func (e *Engine) FreeSlots(date model.Date) []timegrid.Slot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []timegrid.Slot
	for i := 0; i < e.grid.Len(); i++ {
		if occ, _ := e.book.Occupancy(date, timegrid.Slot(i)); occ == nil {
			out = append(out, timegrid.Slot(i))
		}
	}
	return out
}

// FreeStarts lists the slots where service can start on date without
// conflict or running past closing.
func (e *Engine) FreeStarts(date model.Date, service string) ([]timegrid.Slot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	svc, ok := e.service(service)
	if !ok {
		return nil, invalid("service", fmt.Sprintf("unknown service %q", service))
	}
	count, err := e.grid.SlotCount(svc.Duration)
	if err != nil {
		return nil, &ValidationError{Field: "service", Reason: err.Error()}
	}

	var out []timegrid.Slot
	for s := timegrid.Slot(0); int(s)+count <= e.grid.Len(); s++ {
		if len(e.book.Occupants(date, timegrid.Run{Start: s, Count: count})) == 0 {
			out = append(out, s)
		}
	}
	return out, nil
}

func cloneAll(in []*model.Booking) []*model.Booking {
	if in == nil {
		return nil
	}
	out := make([]*model.Booking, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}
