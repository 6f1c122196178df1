package engine

import (
	"context"
	"errors"
	"fmt"

	"barbearia/internal/events"
	"barbearia/internal/metrics"
	"barbearia/internal/model"
	"barbearia/internal/schedule"
	"barbearia/internal/timegrid"

	"github.com/google/uuid"
)

type Outcome int

const (
	Moved Outcome = iota + 1
	SwapProposed
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case SwapProposed:
		return "swap_proposed"
	default:
		return "unknown"
	}
}

// EditRequest changes the service and/or position of the booking occupying
// Date/Start. Zero NewDate, nil NewStart and empty NewService keep the
// current value.
type EditRequest struct {
	Date       model.Date
	Start      timegrid.Slot
	NewService string
	NewStart   *timegrid.Slot
	NewDate    model.Date
}

// SwapProposal describes an exchange the operator must confirm: Moving goes
// to Target, Displaced goes to Moving's old start on FromDate.
type SwapProposal struct {
	MovingID    uuid.UUID
	DisplacedID uuid.UUID

	FromDate  model.Date
	FromStart timegrid.Slot

	TargetDate    model.Date
	TargetStart   timegrid.Slot
	TargetService string

	// Snapshots for display.
	Moving    *model.Booking
	Displaced *model.Booking
}

type EditResult struct {
	Outcome  Outcome
	Booking  *model.Booking
	Proposal *SwapProposal
}

type editPlan struct {
	date    model.Date
	moving  *model.Booking
	target  model.Date
	run     timegrid.Run
	svc     model.Service
	changed bool
}

// Edit moves a booking and/or changes its service. When the new run only
// collides with one other booking that fits into the vacated run, it returns
// a swap proposal instead of changing anything.
func (e *Engine) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, err := e.planEdit(req)
	if err != nil {
		return nil, err
	}

	sim := e.book.Clone()
	moving := e.vacate(sim, plan)

	occupants := sim.Occupants(plan.target, plan.run)
	switch len(occupants) {
	case 0:
		if err := sim.PlaceRun(plan.target, plan.run, moving); err != nil {
			return nil, err
		}
		e.book = sim

		metrics.IncRescheduled(Moved.String())
		e.logger.Info().
			Str("date", plan.date.String()).
			Str("new_date", plan.target.String()).
			Str("slot", e.grid.Label(moving.Start)).
			Str("client", moving.Client).
			Str("service", moving.Service).
			Str("booking_id", moving.ID.String()).
			Msg("Booking moved")
		e.publish(events.BookingMoved, plan.target, moving)

		return &EditResult{Outcome: Moved, Booking: moving.Clone()}, e.committed(ctx)
	case 1:
		p, err := e.proposeSwap(sim, plan, moving, occupants[0])
		if err != nil {
			metrics.IncRescheduled("conflict")
			return nil, err
		}
		metrics.IncRescheduled(SwapProposed.String())
		return &EditResult{Outcome: SwapProposed, Booking: plan.moving.Clone(), Proposal: p}, nil
	default:
		metrics.IncRescheduled("conflict")
		return nil, sim.PlaceRun(plan.target, plan.run, moving)
	}
}

func (e *Engine) planEdit(req EditRequest) (*editPlan, error) {
	b, err := e.resolve(req.Date, req.Start)
	if err != nil {
		return nil, err
	}
	plan := &editPlan{
		date:   req.Date,
		moving: b,
		target: req.Date,
		svc:    model.Service{Name: b.Service, Duration: b.Duration, Price: b.Price},
	}
	if !req.NewDate.IsZero() {
		plan.target = req.NewDate
	}
	start := b.Start
	if req.NewStart != nil {
		start = *req.NewStart
	}
	if plan.target != req.Date && e.closed(plan.target) {
		return nil, invalid("date", fmt.Sprintf("shop is closed on %s", plan.target.BR()))
	}
	if req.NewService != "" && req.NewService != b.Service {
		svc, ok := e.service(req.NewService)
		if !ok {
			return nil, invalid("service", fmt.Sprintf("unknown service %q", req.NewService))
		}
		plan.svc = svc
		plan.changed = true
	}

	plan.run, err = e.grid.SlotsForDuration(start, plan.svc.Duration)
	if err != nil {
		if errors.Is(err, timegrid.ErrSlotNotFound) {
			return nil, &ValidationError{Field: "start", Reason: err.Error()}
		}
		return nil, err
	}
	return plan, nil
}

// vacate clears the moving booking's run in sim and returns its copy there,
// with the new service applied.
func (e *Engine) vacate(sim *schedule.Book, plan *editPlan) *model.Booking {
	moving, _ := sim.Occupancy(plan.date, plan.moving.Start)
	sim.ClearRun(plan.date, moving.Run(e.grid.Interval()))
	if plan.changed {
		moving.Service = plan.svc.Name
		moving.Duration = plan.svc.Duration
		moving.Price = plan.svc.Price
	}
	return moving
}

// proposeSwap checks that other fits, unmodified, into the run the moving
// booking vacated, without disturbing anything but the two bookings involved.
func (e *Engine) proposeSwap(sim *schedule.Book, plan *editPlan, moving, other *model.Booking) (*SwapProposal, error) {
	first := firstShared(plan.run, other.Run(e.grid.Interval()))

	// plan.moving is the live booking, before any service change
	if other.SlotCount(e.grid.Interval()) > plan.moving.SlotCount(e.grid.Interval()) {
		return nil, conflictAt(plan.target, first, e.grid, other)
	}

	otherRun, err := e.grid.SlotsForDuration(plan.moving.Start, other.Duration)
	if err != nil {
		return nil, conflictAt(plan.target, first, e.grid, other)
	}

	sim.ClearRun(plan.target, other.Run(e.grid.Interval()))
	if err := sim.PlaceRun(plan.target, plan.run, moving); err != nil {
		return nil, err
	}
	// other takes moving's old start, unmodified
	if err := sim.PlaceRun(plan.date, otherRun, other); err != nil {
		return nil, conflictAt(plan.target, first, e.grid, other)
	}

	return &SwapProposal{
		MovingID:      plan.moving.ID,
		DisplacedID:   other.ID,
		FromDate:      plan.date,
		FromStart:     plan.moving.Start,
		TargetDate:    plan.target,
		TargetStart:   plan.run.Start,
		TargetService: plan.svc.Name,
		Moving:        plan.moving.Clone(),
		Displaced:     e.original(other).Clone(),
	}, nil
}

// original returns the live booking for a simulated copy.
func (e *Engine) original(b *model.Booking) *model.Booking {
	if _, live, ok := e.book.Find(b.ID); ok {
		return live
	}
	return b
}

func firstShared(a, b timegrid.Run) timegrid.Slot {
	for _, s := range a.Slots() {
		if b.Contains(s) {
			return s
		}
	}
	return a.Start
}

func conflictAt(date model.Date, slot timegrid.Slot, grid *timegrid.Grid, occ *model.Booking) error {
	return &schedule.ConflictError{Date: date, Slot: slot, Label: grid.Label(slot), Occupant: occ}
}

// ConfirmSwap commits a proposal returned by Edit. Both bookings are checked
// again; if either moved since the proposal it fails without changes.
func (e *Engine) ConfirmSwap(ctx context.Context, p *SwapProposal) (*model.Booking, *model.Booking, error) {
	if p == nil {
		return nil, nil, invalid("proposal", "missing")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	moving, err := e.resolve(p.FromDate, p.FromStart)
	if err != nil {
		return nil, nil, err
	}
	if moving.ID != p.MovingID {
		return nil, nil, fmt.Errorf("%w: booking at %s %s changed", ErrNotFound, p.FromDate.BR(), e.grid.Label(p.FromStart))
	}
	targetDate, other, ok := e.book.Find(p.DisplacedID)
	if !ok || targetDate != p.TargetDate {
		return nil, nil, fmt.Errorf("%w: displaced booking no longer on %s", ErrNotFound, p.TargetDate.BR())
	}

	plan := &editPlan{
		date:   p.FromDate,
		moving: moving,
		target: p.TargetDate,
		svc:    model.Service{Name: moving.Service, Duration: moving.Duration, Price: moving.Price},
	}
	if p.TargetService != moving.Service {
		svc, ok := e.service(p.TargetService)
		if !ok {
			return nil, nil, invalid("service", fmt.Sprintf("unknown service %q", p.TargetService))
		}
		plan.svc = svc
		plan.changed = true
	}
	plan.run, err = e.grid.SlotsForDuration(p.TargetStart, plan.svc.Duration)
	if err != nil {
		return nil, nil, err
	}

	sim := e.book.Clone()
	simMoving := e.vacate(sim, plan)
	occupants := sim.Occupants(plan.target, plan.run)
	switch {
	case len(occupants) > 1:
		return nil, nil, sim.PlaceRun(plan.target, plan.run, simMoving)
	case len(occupants) == 0 || occupants[0].ID != other.ID:
		return nil, nil, fmt.Errorf("%w: displaced booking no longer at %s %s",
			ErrNotFound, p.TargetDate.BR(), e.grid.Label(p.TargetStart))
	}
	if _, err := e.proposeSwap(sim, plan, simMoving, occupants[0]); err != nil {
		return nil, nil, err
	}
	e.book = sim

	displaced := occupants[0]
	metrics.IncRescheduled("swapped")
	e.logger.Info().
		Str("date", plan.date.String()).
		Str("new_date", plan.target.String()).
		Str("client", simMoving.Client).
		Str("other_client", displaced.Client).
		Str("booking_id", simMoving.ID.String()).
		Str("other_booking_id", displaced.ID.String()).
		Msg("Bookings swapped")
	e.publish(events.BookingsSwapped, plan.target, simMoving)
	e.publish(events.BookingsSwapped, plan.date, displaced)

	return simMoving.Clone(), displaced.Clone(), e.committed(ctx)
}
