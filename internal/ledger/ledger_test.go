package ledger

import (
	"testing"
	"time"

	"barbearia/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBookings map[model.Date][]*model.Booking

func (f fakeBookings) BookingsOn(d model.Date) []*model.Booking { return f[d] }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	mon = model.NewDate(2024, time.March, 4)
	tue = model.NewDate(2024, time.March, 5)
)

func TestSummarize(t *testing.T) {
	bookings := fakeBookings{
		mon: {
			{ID: uuid.New(), Service: "Cabelo e Barba", Price: money("80.00"), Paid: true,
				Extras: []model.Extra{{Name: "Pomada", UnitPrice: money("25.00"), Quantity: 2}}},
			{ID: uuid.New(), Service: "Cabelo", Price: money("35.00")},
		},
		tue: {
			{ID: uuid.New(), Service: "Cabelo", Price: money("35.00"), Paid: true},
		},
	}
	sales := NewSales()
	_, err := sales.Add(mon, "Ana", "Pomada", money("25.00"), true)
	require.NoError(t, err)
	_, err = sales.Add(tue, "", "Cerveja", money("8.00"), false)
	require.NoError(t, err)

	s := Summarize(bookings, sales, []model.Date{mon, tue, mon})

	assert.Equal(t, 3, s.Attendance)
	assert.True(t, money("165.00").Equal(s.BookingsPaid), s.BookingsPaid.String())
	assert.True(t, money("35.00").Equal(s.BookingsPending))
	assert.True(t, money("25.00").Equal(s.SalesPaid))
	assert.True(t, money("8.00").Equal(s.SalesPending))
	assert.True(t, money("190.00").Equal(s.TotalPaid))
	assert.True(t, money("43.00").Equal(s.TotalPending))
	assert.True(t, s.Total.Equal(s.TotalPaid.Add(s.TotalPending)))

	assert.Equal(t, map[string]int{"Cabelo e Barba": 1, "Cabelo": 2}, s.ServiceCounts)
	assert.Equal(t, map[string]int{"Pomada": 3, "Cerveja": 1}, s.ProductCounts)

	assert.Equal(t, []Count{{"Cabelo", 2}, {"Cabelo e Barba", 1}}, s.TopServices(5))
	assert.Equal(t, []Count{{"Pomada", 3}}, s.TopProducts(1))
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil, MonthDates(2024, time.February))
	assert.Equal(t, 0, s.Attendance)
	assert.True(t, s.Total.IsZero())
	assert.Empty(t, s.TopServices(3))
}

func TestTop_TiesByName(t *testing.T) {
	got := top(map[string]int{"b": 2, "a": 2, "c": 5}, 0)
	assert.Equal(t, []Count{{"c", 5}, {"a", 2}, {"b", 2}}, got)
}

func TestDates(t *testing.T) {
	assert.Equal(t, []model.Date{mon}, DayDates(mon))

	feb := MonthDates(2024, time.February)
	require.Len(t, feb, 29)
	assert.Equal(t, model.NewDate(2024, time.February, 1), feb[0])
	assert.Equal(t, model.NewDate(2024, time.February, 29), feb[28])
	assert.Len(t, MonthDates(2023, time.February), 28)
}

func TestSales(t *testing.T) {
	s := NewSales()

	_, err := s.Add(mon, "Ana", " ", money("1"), false)
	assert.ErrorIs(t, err, ErrInvalidSale)
	_, err = s.Add(mon, "Ana", "Pomada", money("-1"), false)
	assert.ErrorIs(t, err, ErrInvalidSale)

	rec, err := s.Add(mon, " Ana ", "Pomada", money("25"), false)
	require.NoError(t, err)
	assert.Equal(t, "Ana", rec.Client)
	assert.NotEqual(t, uuid.Nil, rec.ID)

	require.NoError(t, s.SetPaid(mon, rec.ID, true))
	assert.True(t, s.SalesOn(mon)[0].Paid)
	assert.ErrorIs(t, s.SetPaid(tue, rec.ID, true), ErrSaleNotFound)

	other, err := s.Add(mon, "", "Cerveja", money("8"), true)
	require.NoError(t, err)
	assert.Equal(t, []model.Date{mon}, s.Dates())

	doc := s.Document()
	restored := NewSales()
	restored.Load(doc)
	assert.Len(t, restored.SalesOn(mon), 2)

	require.NoError(t, s.Remove(mon, rec.ID))
	list := s.SalesOn(mon)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)
	assert.ErrorIs(t, s.Remove(mon, rec.ID), ErrSaleNotFound)
	assert.Len(t, restored.SalesOn(mon), 2, "loaded copy is independent")
}
