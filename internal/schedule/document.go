package schedule

import (
	"sort"

	"barbearia/internal/model"
	"barbearia/internal/timegrid"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SlotRecord is the stored form of one occupied slot. The first slot of a run
// carries the booking; the others only point back at it.
type SlotRecord struct {
	Booking   *model.Booking `json:"reserva,omitempty"`
	BookingID uuid.UUID      `json:"reserva_id"`
	Start     string         `json:"inicio"`
}

// Document is the whole agenda as persisted: date -> "HH:MM" -> record.
// Free slots are stored as null.
type Document map[model.Date]map[string]*SlotRecord

// Document renders the book for persistence.
func (b *Book) Document() Document {
	doc := make(Document, len(b.days))
	for date, d := range b.days {
		slots := make(map[string]*SlotRecord, len(d.slots))
		for i, occ := range d.slots {
			label := b.grid.Label(timegrid.Slot(i))
			if occ == nil {
				slots[label] = nil
				continue
			}
			rec := &SlotRecord{BookingID: occ.ID, Start: b.grid.Label(occ.Start)}
			if occ.Start == timegrid.Slot(i) {
				rec.Booking = occ.Clone()
			}
			slots[label] = rec
		}
		doc[date] = slots
	}
	return doc
}

// FromDocument rebuilds a book on grid. Runs are recomputed from each
// booking's own start and duration; secondary markers are ignored. Bookings
// that no longer fit the grid are dropped with a warning.
func FromDocument(doc Document, grid *timegrid.Grid, logger *zerolog.Logger) *Book {
	b := NewBook(grid)
	for date, slots := range doc {
		b.Ensure(date)
		labels := make([]string, 0, len(slots))
		for label := range slots {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			rec := slots[label]
			if rec == nil || rec.Booking == nil {
				continue
			}
			bk := rec.Booking.Clone()
			if bk.ID == uuid.Nil {
				bk.ID = uuid.New()
			}

			start, err := grid.ParseLabel(label)
			if err != nil {
				logger.Warn().Err(err).Str("date", date.String()).Str("slot", label).
					Str("client", bk.Client).Msg("Dropping booking outside the grid")
				continue
			}
			run, err := grid.SlotsForDuration(start, bk.Duration)
			if err != nil {
				logger.Warn().Err(err).Str("date", date.String()).Str("slot", label).
					Str("client", bk.Client).Msg("Dropping booking that no longer fits")
				continue
			}
			if err := b.PlaceRun(date, run, bk); err != nil {
				logger.Warn().Err(err).Str("date", date.String()).Str("slot", label).
					Str("client", bk.Client).Msg("Dropping overlapping booking")
				continue
			}
		}
	}
	return b
}
