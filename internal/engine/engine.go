// Package engine implements the scheduling operations on top of a schedule.Book.
//
// Every mutation runs under one lock, validates against the grid and the
// catalog, and either applies completely or leaves the book untouched.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"barbearia/internal/events"
	"barbearia/internal/metrics"
	"barbearia/internal/model"
	"barbearia/internal/schedule"
	"barbearia/internal/timegrid"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("no booking at slot")
	ErrScheduleFull = errors.New("service does not fit before closing")
	ErrPersist      = errors.New("agenda changed but could not be saved")
)

// ValidationError reports a missing or unknown input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Catalog resolves service and product names.
type Catalog interface {
	Service(name string) (model.Service, bool)
	Product(name string) (model.Product, bool)
}

// Calendar is implemented by catalogs that know when the shop is closed.
type Calendar interface {
	IsClosed(date model.Date) bool
}

// Persister stores the whole agenda document.
type Persister interface {
	SaveAgenda(ctx context.Context, doc schedule.Document) error
}

// Publisher receives domain events.
type Publisher interface {
	Publish(event events.Event) error
}

type Options struct {
	Persister Persister
	Publisher Publisher
	// AutoPersist saves the agenda after every successful mutation.
	AutoPersist bool
}

type Engine struct {
	mu          sync.Mutex
	grid        *timegrid.Grid
	book        *schedule.Book
	catalog     Catalog
	persister   Persister
	publisher   Publisher
	autoPersist bool
	now         func() time.Time
	logger      zerolog.Logger
}

func New(grid *timegrid.Grid, catalog Catalog, opts Options, logger *zerolog.Logger) *Engine {
	return &Engine{
		grid:        grid,
		book:        schedule.NewBook(grid),
		catalog:     catalog,
		persister:   opts.Persister,
		publisher:   opts.Publisher,
		autoPersist: opts.AutoPersist,
		now:         time.Now,
		logger:      logger.With().Str("component", "engine").Logger(),
	}
}

func (e *Engine) Grid() *timegrid.Grid { return e.grid }

// SetCatalog swaps the catalog, e.g. after a reload. Existing bookings keep
// their stored duration and price.
func (e *Engine) SetCatalog(c Catalog) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.catalog = c
}

func (e *Engine) service(name string) (model.Service, bool) {
	if e.catalog == nil {
		return model.Service{}, false
	}
	return e.catalog.Service(name)
}

func (e *Engine) product(name string) (model.Product, bool) {
	if e.catalog == nil {
		return model.Product{}, false
	}
	return e.catalog.Product(name)
}

func (e *Engine) closed(date model.Date) bool {
	cal, ok := e.catalog.(Calendar)
	return ok && cal.IsClosed(date)
}

// Load replaces the in-memory agenda with doc.
func (e *Engine) Load(doc schedule.Document) {
	book := schedule.FromDocument(doc, e.grid, &e.logger)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.book = book
}

// Document renders the current agenda for persistence.
func (e *Engine) Document() schedule.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Document()
}

// Snapshot is an opaque copy of the agenda used to roll back.
type Snapshot struct {
	book *schedule.Book
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{book: e.book.Clone()}
}

func (e *Engine) Restore(s Snapshot) {
	if s.book == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.book = s.book.Clone()
}

// Persist saves the agenda through the configured persister.
func (e *Engine) Persist(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.save(ctx)
}

func (e *Engine) save(ctx context.Context) error {
	if e.persister == nil {
		return nil
	}
	if err := e.persister.SaveAgenda(ctx, e.book.Document()); err != nil {
		metrics.IncPersistFailure()
		e.logger.Error().Err(err).Msg("Failed to save agenda")
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// committed runs after a mutation has been applied.
func (e *Engine) committed(ctx context.Context) error {
	if !e.autoPersist {
		return nil
	}
	return e.save(ctx)
}

func (e *Engine) publish(eventType string, date model.Date, b *model.Booking) {
	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(b)
	if err != nil {
		e.logger.Warn().Err(err).Str("event", eventType).Msg("Failed to encode event payload")
	}
	ev := events.Event{
		Type:      eventType,
		Date:      date.String(),
		Slot:      e.grid.Label(b.Start),
		BookingID: b.ID,
		Client:    b.Client,
		Payload:   payload,
		CreatedAt: e.now(),
	}
	if err := e.publisher.Publish(ev); err != nil {
		e.logger.Warn().Err(err).Str("event", eventType).Msg("Event handler failed")
	}
}

// Draft is the input of Book.
type Draft struct {
	Client    string
	ClientKey string
	Service   string
	Start     timegrid.Slot
	Note      string
	// Price overrides the catalog price when set.
	Price *decimal.Decimal
}

// Book reserves the run of slots the draft's service needs starting at
// draft.Start. Dates the catalog marks as closed are rejected.
func (e *Engine) Book(ctx context.Context, date model.Date, d Draft) (*model.Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.newBooking(d)
	if err != nil {
		return nil, err
	}
	if e.closed(date) {
		return nil, invalid("date", fmt.Sprintf("shop is closed on %s", date.BR()))
	}
	run, err := e.runFor(d.Start, b.Duration)
	if err != nil {
		return nil, err
	}
	if err := e.book.PlaceRun(date, run, b); err != nil {
		return nil, err
	}

	metrics.IncBookingCreated(b.Service)
	e.logger.Info().
		Str("date", date.String()).
		Str("slot", e.grid.Label(b.Start)).
		Str("client", b.Client).
		Str("service", b.Service).
		Str("booking_id", b.ID.String()).
		Msg("Booking created")
	e.publish(events.BookingCreated, date, b)

	return b.Clone(), e.committed(ctx)
}

func (e *Engine) newBooking(d Draft) (*model.Booking, error) {
	client := strings.TrimSpace(d.Client)
	if client == "" {
		return nil, invalid("client", "name is required")
	}
	if strings.TrimSpace(d.Service) == "" {
		return nil, invalid("service", "service is required")
	}
	svc, ok := e.service(d.Service)
	if !ok {
		return nil, invalid("service", fmt.Sprintf("unknown service %q", d.Service))
	}
	price := svc.Price
	if d.Price != nil {
		if d.Price.IsNegative() {
			return nil, invalid("price", "must not be negative")
		}
		price = *d.Price
	}
	return &model.Booking{
		ID:        uuid.New(),
		Client:    client,
		ClientKey: d.ClientKey,
		Service:   svc.Name,
		Duration:  svc.Duration,
		Note:      strings.TrimSpace(d.Note),
		Price:     price,
		CreatedAt: e.now(),
	}, nil
}

// runFor maps grid errors to the engine's taxonomy.
func (e *Engine) runFor(start timegrid.Slot, duration int) (timegrid.Run, error) {
	run, err := e.grid.SlotsForDuration(start, duration)
	switch {
	case err == nil:
		return run, nil
	case errors.Is(err, timegrid.ErrOutOfRange):
		return timegrid.Run{}, fmt.Errorf("%w: %w", ErrScheduleFull, err)
	case errors.Is(err, timegrid.ErrSlotNotFound):
		return timegrid.Run{}, &ValidationError{Field: "start", Reason: err.Error()}
	default:
		return timegrid.Run{}, &ValidationError{Field: "service", Reason: err.Error()}
	}
}

// resolve returns the booking occupying slot on date.
func (e *Engine) resolve(date model.Date, slot timegrid.Slot) (*model.Booking, error) {
	occ, err := e.book.Occupancy(date, slot)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if occ == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, date.BR(), e.grid.Label(slot))
	}
	return occ, nil
}

// Cancel frees the whole run of the booking occupying slot. Any slot of the
// run may be given; the run is recomputed from the booking itself.
func (e *Engine) Cancel(ctx context.Context, date model.Date, slot timegrid.Slot) (*model.Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.resolve(date, slot)
	if err != nil {
		return nil, err
	}
	e.book.ClearRun(date, b.Run(e.grid.Interval()))

	metrics.IncBookingCancelled()
	e.logger.Info().
		Str("date", date.String()).
		Str("slot", e.grid.Label(b.Start)).
		Str("client", b.Client).
		Str("booking_id", b.ID.String()).
		Msg("Booking cancelled")
	e.publish(events.BookingCancelled, date, b)

	return b.Clone(), e.committed(ctx)
}

// SetPaid sets the paid flag. Clearing it is allowed.
func (e *Engine) SetPaid(ctx context.Context, date model.Date, slot timegrid.Slot, paid bool) (*model.Booking, error) {
	return e.update(ctx, date, slot, events.BookingPaid, func(b *model.Booking) error {
		b.Paid = paid
		return nil
	})
}

// AddExtra attaches quantity units of a catalog product to the booking.
// Adding a product already present increases its quantity.
func (e *Engine) AddExtra(ctx context.Context, date model.Date, slot timegrid.Slot, product string, quantity int) (*model.Booking, error) {
	if quantity <= 0 {
		return nil, invalid("quantity", "must be positive")
	}
	return e.update(ctx, date, slot, events.BookingUpdated, func(b *model.Booking) error {
		p, ok := e.product(product)
		if !ok {
			return invalid("product", fmt.Sprintf("unknown product %q", product))
		}
		for i := range b.Extras {
			if b.Extras[i].Name == p.Name && b.Extras[i].UnitPrice.Equal(p.Price) {
				b.Extras[i].Quantity += quantity
				return nil
			}
		}
		b.Extras = append(b.Extras, model.Extra{Name: p.Name, UnitPrice: p.Price, Quantity: quantity})
		return nil
	})
}

// RemoveExtra drops every line item named product.
func (e *Engine) RemoveExtra(ctx context.Context, date model.Date, slot timegrid.Slot, product string) (*model.Booking, error) {
	return e.update(ctx, date, slot, events.BookingUpdated, func(b *model.Booking) error {
		kept := b.Extras[:0:0]
		for _, x := range b.Extras {
			if !strings.EqualFold(x.Name, product) {
				kept = append(kept, x)
			}
		}
		if len(kept) == len(b.Extras) {
			return fmt.Errorf("%w: extra %q", ErrNotFound, product)
		}
		b.Extras = kept
		return nil
	})
}

func (e *Engine) UpdateNote(ctx context.Context, date model.Date, slot timegrid.Slot, note string) (*model.Booking, error) {
	return e.update(ctx, date, slot, events.BookingUpdated, func(b *model.Booking) error {
		b.Note = strings.TrimSpace(note)
		return nil
	})
}

// update applies fn to a copy of the booking and commits it only on success.
func (e *Engine) update(ctx context.Context, date model.Date, slot timegrid.Slot, eventType string, fn func(*model.Booking) error) (*model.Booking, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, err := e.resolve(date, slot)
	if err != nil {
		return nil, err
	}
	draft := b.Clone()
	if err := fn(draft); err != nil {
		return nil, err
	}
	*b = *draft

	e.logger.Debug().
		Str("date", date.String()).
		Str("slot", e.grid.Label(b.Start)).
		Str("booking_id", b.ID.String()).
		Str("event", eventType).
		Msg("Booking updated")
	e.publish(eventType, date, b)

	return b.Clone(), e.committed(ctx)
}
