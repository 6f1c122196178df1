// Package ledger aggregates bookings and standalone sales into totals.
package ledger

import (
	"sort"
	"time"

	"barbearia/internal/model"

	"github.com/shopspring/decimal"
)

// BookingSource yields the bookings of a date, one entry per booking.
type BookingSource interface {
	BookingsOn(date model.Date) []*model.Booking
}

// SaleSource yields the standalone sales of a date.
type SaleSource interface {
	SalesOn(date model.Date) []model.SaleRecord
}

type Summary struct {
	Attendance      int
	BookingsPaid    decimal.Decimal
	BookingsPending decimal.Decimal
	SalesPaid       decimal.Decimal
	SalesPending    decimal.Decimal
	TotalPaid       decimal.Decimal
	TotalPending    decimal.Decimal
	Total           decimal.Decimal
	ServiceCounts   map[string]int
	ProductCounts   map[string]int
}

// Count is one row of a ranking.
type Count struct {
	Name  string
	Count int
}

// Summarize totals the given dates. Duplicate dates are counted once. A nil
// source contributes nothing.
func Summarize(bookings BookingSource, sales SaleSource, dates []model.Date) Summary {
	s := Summary{
		BookingsPaid:    decimal.Zero,
		BookingsPending: decimal.Zero,
		SalesPaid:       decimal.Zero,
		SalesPending:    decimal.Zero,
		ServiceCounts:   make(map[string]int),
		ProductCounts:   make(map[string]int),
	}

	seen := make(map[model.Date]bool, len(dates))
	for _, d := range dates {
		if seen[d] {
			continue
		}
		seen[d] = true

		if bookings != nil {
			for _, b := range bookings.BookingsOn(d) {
				s.Attendance++
				s.ServiceCounts[b.Service]++
				for _, x := range b.Extras {
					s.ProductCounts[x.Name] += x.Quantity
				}
				if b.Paid {
					s.BookingsPaid = s.BookingsPaid.Add(b.Total())
				} else {
					s.BookingsPending = s.BookingsPending.Add(b.Total())
				}
			}
		}

		if sales != nil {
			for _, r := range sales.SalesOn(d) {
				s.ProductCounts[r.Product]++
				if r.Paid {
					s.SalesPaid = s.SalesPaid.Add(r.Value)
				} else {
					s.SalesPending = s.SalesPending.Add(r.Value)
				}
			}
		}
	}

	s.TotalPaid = s.BookingsPaid.Add(s.SalesPaid)
	s.TotalPending = s.BookingsPending.Add(s.SalesPending)
	s.Total = s.TotalPaid.Add(s.TotalPending)
	return s
}

func (s Summary) TopServices(n int) []Count { return top(s.ServiceCounts, n) }

func (s Summary) TopProducts(n int) []Count { return top(s.ProductCounts, n) }

// top ranks by count descending, then name. n <= 0 returns everything.
func top(counts map[string]int, n int) []Count {
	out := make([]Count, 0, len(counts))
	for name, c := range counts {
		out = append(out, Count{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// DayDates is the single-date set.
func DayDates(d model.Date) []model.Date {
	return []model.Date{d}
}

// MonthDates lists every day of the month.
func MonthDates(year int, month time.Month) []model.Date {
	first := model.NewDate(year, month, 1)
	var out []model.Date
	for d := first; d.Month == month; d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
