package model

import (
	"time"

	"barbearia/internal/timegrid"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Extra is a line item attached to a booking (a product sold during the service).
type Extra struct {
	Name      string          `json:"nome"`
	UnitPrice decimal.Decimal `json:"valor"`
	Quantity  int             `json:"qtd"`
}

// Total returns UnitPrice * Quantity.
func (e Extra) Total() decimal.Decimal {
	return e.UnitPrice.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// PackageTag marks a booking as one visit of a recurring monthly package.
type PackageTag struct {
	Name         string          `json:"nome"`
	MonthlyValue decimal.Decimal `json:"valor_mensal"`
}

// Booking is one client's reservation of a contiguous run of slots.
type Booking struct {
	ID        uuid.UUID       `json:"id"`
	Client    string          `json:"cliente"`
	ClientKey string          `json:"cliente_id,omitempty"`
	Service   string          `json:"servico"`
	Duration  int             `json:"duracao"` // minutes
	Start     timegrid.Slot   `json:"-"`
	Note      string          `json:"obs,omitempty"`
	Price     decimal.Decimal `json:"valor"`
	Paid      bool            `json:"pago"`
	Extras    []Extra         `json:"extras,omitempty"`
	Package   *PackageTag     `json:"pacote,omitempty"`
	CreatedAt time.Time       `json:"criado_em"`
}

// SlotCount returns the number of slots the booking spans on a grid with the
// given interval.
func (b *Booking) SlotCount(interval int) int {
	if interval <= 0 {
		return 0
	}
	return b.Duration / interval
}

// EndSlot returns start + duration/interval - 1.
func (b *Booking) EndSlot(interval int) timegrid.Slot {
	return b.Start + timegrid.Slot(b.SlotCount(interval)) - 1
}

// Run returns the booking's own run, derived from its start and duration.
func (b *Booking) Run(interval int) timegrid.Run {
	return timegrid.Run{Start: b.Start, Count: b.SlotCount(interval)}
}

// ExtrasTotal sums all extra line items.
func (b *Booking) ExtrasTotal() decimal.Decimal {
	total := decimal.Zero
	for _, e := range b.Extras {
		total = total.Add(e.Total())
	}
	return total
}

// Total is the service price plus extras.
func (b *Booking) Total() decimal.Decimal {
	return b.Price.Add(b.ExtrasTotal())
}

// Clone returns a deep copy, keeping the same identity.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.Extras != nil {
		c.Extras = append([]Extra(nil), b.Extras...)
	}
	if b.Package != nil {
		p := *b.Package
		c.Package = &p
	}
	return &c
}

func (p *PackageTag) Clone() *PackageTag {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
