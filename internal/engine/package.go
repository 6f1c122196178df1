package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"barbearia/internal/events"
	"barbearia/internal/metrics"
	"barbearia/internal/model"
	"barbearia/internal/timegrid"

	"github.com/shopspring/decimal"
)

// HolidayResolution is the operator's answer for one occurrence that falls on
// a holiday.
type HolidayResolution int

const (
	PreviousDay HolidayResolution = iota + 1
	NextDay
	SkipWeek
)

// HolidayPredicate reports whether date is a holiday.
type HolidayPredicate func(date model.Date) bool

// HolidayResolver is asked once per occurrence that hits a holiday.
type HolidayResolver func(date model.Date) HolidayResolution

// PackageRequest describes a weekly series for one client. Services
// alternate by week: Services[0] on even weeks (the first), Services[1] on
// odd weeks. An empty Services[1] repeats Services[0].
type PackageRequest struct {
	Client       string
	ClientKey    string
	Weekday      time.Weekday
	Start        timegrid.Slot
	Services     [2]string
	StartDate    model.Date
	Weeks        int
	PackageName  string
	MonthlyValue decimal.Decimal
	Note         string
}

// PackageResult counts what happened to each week. An occurrence moved off a
// holiday counts in HolidayAdjusted and also in Created, ConflictSkipped or
// ClosedSkipped depending on how its new date turned out. Every other
// occurrence lands in exactly one of Created, HolidaySkipped, ConflictSkipped
// and ClosedSkipped.
type PackageResult struct {
	Created         int
	HolidayAdjusted int
	HolidaySkipped  int
	ConflictSkipped int
	ClosedSkipped   int
	Bookings        []*model.Booking
	Dates           []model.Date
}

// GeneratePackage books one visit per week starting on the first req.Weekday
// on or after req.StartDate. Occurrences that conflict or overflow the grid
// are counted and skipped; the rest are still booked.
func (e *Engine) GeneratePackage(ctx context.Context, req PackageRequest, isHoliday HolidayPredicate, resolve HolidayResolver) (*PackageResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validatePackage(req); err != nil {
		return nil, err
	}

	services := req.Services
	if strings.TrimSpace(services[1]) == "" {
		services[1] = services[0]
	}
	tag := &model.PackageTag{Name: req.PackageName, MonthlyValue: req.MonthlyValue}
	if tag.Name == "" {
		tag.Name = "Pacote " + strings.TrimSpace(req.Client)
	}

	anchor := req.StartDate.NextWeekday(req.Weekday)
	if isHoliday != nil && resolve == nil {
		for week := 0; week < req.Weeks; week++ {
			if date := anchor.AddDays(7 * week); isHoliday(date) {
				return nil, invalid("holiday", fmt.Sprintf("%s is a holiday and no resolver was given", date.BR()))
			}
		}
	}

	res := &PackageResult{}
	for week := 0; week < req.Weeks; week++ {
		date := anchor.AddDays(7 * week)
		log := e.logger.With().Str("date", date.String()).Int("week", week+1).Logger()

		if isHoliday != nil && isHoliday(date) {
			switch resolve(date) {
			case PreviousDay:
				date = date.AddDays(-1)
				res.HolidayAdjusted++
			case NextDay:
				date = date.AddDays(1)
				res.HolidayAdjusted++
			case SkipWeek:
				res.HolidaySkipped++
				metrics.IncPackageOccurrence("holiday_skipped")
				log.Info().Msg("Package week skipped for holiday")
				continue
			default:
				return res, e.partial(ctx, res, invalid("holiday", fmt.Sprintf("no resolution chosen for %s", date.BR())))
			}
		}

		if e.closed(date) {
			res.ClosedSkipped++
			metrics.IncPackageOccurrence("closed_skipped")
			log.Info().Str("booked_date", date.String()).Msg("Package occurrence skipped, shop closed")
			continue
		}

		b, err := e.newBooking(Draft{
			Client:    req.Client,
			ClientKey: req.ClientKey,
			Service:   services[week%2],
			Start:     req.Start,
			Note:      req.Note,
		})
		if err != nil {
			return res, e.partial(ctx, res, err)
		}
		b.Package = tag.Clone()

		run, err := e.runFor(req.Start, b.Duration)
		if err == nil {
			err = e.book.PlaceRun(date, run, b)
		}
		if err != nil {
			if errors.Is(err, ErrValidation) {
				return res, e.partial(ctx, res, err)
			}
			res.ConflictSkipped++
			metrics.IncPackageOccurrence("conflict_skipped")
			log.Warn().Err(err).Msg("Package occurrence skipped")
			continue
		}

		res.Created++
		res.Bookings = append(res.Bookings, b.Clone())
		res.Dates = append(res.Dates, date)
		metrics.IncPackageOccurrence("created")
		metrics.IncBookingCreated(b.Service)
		e.publish(events.PackageGenerated, date, b)
	}

	e.logger.Info().
		Str("client", req.Client).
		Int("created", res.Created).
		Int("holiday_adjusted", res.HolidayAdjusted).
		Int("holiday_skipped", res.HolidaySkipped).
		Int("conflict_skipped", res.ConflictSkipped).
		Int("closed_skipped", res.ClosedSkipped).
		Msg("Package generated")

	return res, e.committedIf(ctx, res.Created > 0)
}

func (e *Engine) validatePackage(req PackageRequest) error {
	if strings.TrimSpace(req.Client) == "" {
		return invalid("client", "name is required")
	}
	if req.Weeks <= 0 {
		return invalid("weeks", "must be positive")
	}
	if req.StartDate.IsZero() {
		return invalid("start_date", "is required")
	}
	if req.Weekday < time.Sunday || req.Weekday > time.Saturday {
		return invalid("weekday", fmt.Sprintf("unknown weekday %d", int(req.Weekday)))
	}
	if !e.grid.Valid(req.Start) {
		return invalid("start", fmt.Sprintf("slot %d is not on the grid", int(req.Start)))
	}
	if req.MonthlyValue.IsNegative() {
		return invalid("monthly_value", "must not be negative")
	}
	for i, name := range req.Services {
		if i == 1 && strings.TrimSpace(name) == "" {
			continue
		}
		if _, ok := e.service(name); !ok {
			return invalid("service", fmt.Sprintf("unknown service %q", name))
		}
	}
	return nil
}

// partial persists what was already booked and returns cause.
func (e *Engine) partial(ctx context.Context, res *PackageResult, cause error) error {
	if err := e.committedIf(ctx, res.Created > 0); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (e *Engine) committedIf(ctx context.Context, changed bool) error {
	if !changed {
		return nil
	}
	return e.committed(ctx)
}
