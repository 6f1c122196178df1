package model

import (
	"fmt"
	"time"
)

const (
	isoLayout = "2006-01-02"
	brLayout  = "02/01/2006"
)

// Date is a calendar day without time zone. It is comparable and usable as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes overflowing values (e.g. day 32) the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Today returns the local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// ParseBRDate parses the operator-facing "DD/MM/YYYY" form.
func ParseBRDate(s string) (Date, error) {
	t, err := time.Parse(brLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, expected DD/MM/YYYY", s)
	}
	return DateOf(t), nil
}

func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) After(o Date) bool {
	return d.Time().After(o.Time())
}

// String returns "YYYY-MM-DD".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// BR returns "DD/MM/YYYY".
func (d Date) BR() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NextWeekday returns the first date on or after d falling on wd.
func (d Date) NextWeekday(wd time.Weekday) Date {
	diff := (int(wd) - int(d.Weekday()) + 7) % 7
	return d.AddDays(diff)
}
