package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Birthday is a day and month without year.
type Birthday struct {
	Day   int        `json:"dia"`
	Month time.Month `json:"mes"`
}

// ParseBirthday parses "DD/MM".
func ParseBirthday(s string) (Birthday, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return Birthday{}, fmt.Errorf("invalid birthday %q, expected DD/MM", s)
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return Birthday{}, fmt.Errorf("invalid birthday day in %q", s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Birthday{}, fmt.Errorf("invalid birthday month in %q", s)
	}
	b := Birthday{Day: day, Month: time.Month(month)}
	if err := b.Validate(); err != nil {
		return Birthday{}, err
	}
	return b, nil
}

// Validate checks the day exists in the month (29/02 is accepted).
func (b Birthday) Validate() error {
	if b.Month < time.January || b.Month > time.December {
		return fmt.Errorf("invalid birthday month %d", int(b.Month))
	}
	// 2024 is a leap year so 29/02 passes.
	last := time.Date(2024, b.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if b.Day < 1 || b.Day > last {
		return fmt.Errorf("invalid birthday day %d for month %d", b.Day, int(b.Month))
	}
	return nil
}

// On reports whether the birthday falls on d. 29/02 is celebrated on 28/02 in
// non-leap years.
func (b Birthday) On(d Date) bool {
	if b.Month != d.Month {
		return false
	}
	if b.Day == d.Day {
		return true
	}
	if b.Month == time.February && b.Day == 29 && d.Day == 28 {
		return time.Date(d.Year, time.February, 29, 0, 0, 0, 0, time.UTC).Month() != time.February
	}
	return false
}

func (b Birthday) String() string {
	return fmt.Sprintf("%02d/%02d", b.Day, int(b.Month))
}

// ClientRecord is an entry of the client registry.
type ClientRecord struct {
	Name     string    `json:"nome"`
	Phone    string    `json:"telefone,omitempty"`
	Birthday *Birthday `json:"aniversario,omitempty"`
}

// SaleRecord is a product sale not tied to any slot.
type SaleRecord struct {
	ID        uuid.UUID       `json:"id"`
	Client    string          `json:"cliente,omitempty"`
	Product   string          `json:"produto"`
	Value     decimal.Decimal `json:"valor"`
	Paid      bool            `json:"pago"`
	CreatedAt time.Time       `json:"criado_em"`
}

// Service is a bookable catalog entry.
type Service struct {
	Name     string
	Duration int // minutes
	Price    decimal.Decimal
}

// Product is a retail catalog entry, sold as an extra or standalone sale.
type Product struct {
	Name  string
	Price decimal.Decimal
}
