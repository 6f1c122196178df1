// Package timegrid builds the fixed slot grid of a business day.
package timegrid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrConfig       = errors.New("invalid grid configuration")
	ErrSlotNotFound = errors.New("slot not found in grid")
	ErrOutOfRange   = errors.New("run extends past closing time")
)

// Slot is an index into the ordered slot sequence of a Grid.
type Slot int

// Grid is the ordered sequence of slot start times for one day.
// The closing time is itself the last slot.
type Grid struct {
	open     int
	close    int
	interval int
	minutes  []int
}

// Generate builds a grid from open to close inclusive, stepping interval minutes.
func Generate(open, close, interval int) (*Grid, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %d", ErrConfig, interval)
	}
	if open < 0 || close >= 24*60 {
		return nil, fmt.Errorf("%w: times must be within the day", ErrConfig)
	}
	if open > close {
		return nil, fmt.Errorf("%w: open %s is after close %s", ErrConfig, FormatMinutes(open), FormatMinutes(close))
	}
	if (close-open)%interval != 0 {
		return nil, fmt.Errorf("%w: %s..%s is not a multiple of %d minutes",
			ErrConfig, FormatMinutes(open), FormatMinutes(close), interval)
	}

	minutes := make([]int, 0, (close-open)/interval+1)
	for m := open; m <= close; m += interval {
		minutes = append(minutes, m)
	}

	return &Grid{open: open, close: close, interval: interval, minutes: minutes}, nil
}

// GenerateFromLabels is Generate with "HH:MM" boundaries.
func GenerateFromLabels(open, close string, interval int) (*Grid, error) {
	o, err := ParseMinutes(open)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrConfig, err)
	}
	c, err := ParseMinutes(close)
	if err != nil {
		return nil, fmt.Errorf("%w: close: %v", ErrConfig, err)
	}
	return Generate(o, c, interval)
}

func (g *Grid) Len() int      { return len(g.minutes) }
func (g *Grid) Interval() int { return g.interval }
func (g *Grid) Open() int     { return g.open }
func (g *Grid) Close() int    { return g.close }

// Last returns the closing slot.
func (g *Grid) Last() Slot { return Slot(len(g.minutes) - 1) }

// Valid reports whether s indexes a slot of this grid.
func (g *Grid) Valid(s Slot) bool {
	return s >= 0 && int(s) < len(g.minutes)
}

// Minutes returns the minutes-since-midnight of slot s.
func (g *Grid) Minutes(s Slot) int {
	return g.minutes[s]
}

// Label formats slot s as "HH:MM".
func (g *Grid) Label(s Slot) string {
	if !g.Valid(s) {
		return fmt.Sprintf("#%d", int(s))
	}
	return FormatMinutes(g.minutes[s])
}

// Labels returns every slot label in order.
func (g *Grid) Labels() []string {
	out := make([]string, len(g.minutes))
	for i, m := range g.minutes {
		out[i] = FormatMinutes(m)
	}
	return out
}

// IndexOf returns the slot that starts at the given minute of the day.
func (g *Grid) IndexOf(minutes int) (Slot, error) {
	if minutes < g.open || minutes > g.close || (minutes-g.open)%g.interval != 0 {
		return 0, fmt.Errorf("%w: %s", ErrSlotNotFound, FormatMinutes(minutes))
	}
	return Slot((minutes - g.open) / g.interval), nil
}

// ParseLabel resolves an "HH:MM" label to its slot.
func (g *Grid) ParseLabel(label string) (Slot, error) {
	m, err := ParseMinutes(label)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSlotNotFound, err)
	}
	return g.IndexOf(m)
}

// SlotCount converts a duration to a number of slots. The duration must be
// a positive multiple of the interval.
func (g *Grid) SlotCount(durationMinutes int) (int, error) {
	if durationMinutes <= 0 || durationMinutes%g.interval != 0 {
		return 0, fmt.Errorf("%w: duration %d is not a positive multiple of %d",
			ErrConfig, durationMinutes, g.interval)
	}
	return durationMinutes / g.interval, nil
}

// SlotsForDuration returns the run of slots a service of durationMinutes
// occupies when starting at start. Runs that would pass the last slot are
// rejected, never truncated.
func (g *Grid) SlotsForDuration(start Slot, durationMinutes int) (Run, error) {
	if !g.Valid(start) {
		return Run{}, fmt.Errorf("%w: %s", ErrSlotNotFound, g.Label(start))
	}
	count, err := g.SlotCount(durationMinutes)
	if err != nil {
		return Run{}, err
	}
	if int(start)+count > len(g.minutes) {
		return Run{}, fmt.Errorf("%w: %d min from %s", ErrOutOfRange, durationMinutes, g.Label(start))
	}
	return Run{Start: start, Count: count}, nil
}

// Run is a contiguous sequence of slots.
type Run struct {
	Start Slot
	Count int
}

// End returns the last slot of the run.
func (r Run) End() Slot { return r.Start + Slot(r.Count) - 1 }

// Contains reports whether s lies in the run.
func (r Run) Contains(s Slot) bool {
	return s >= r.Start && s < r.Start+Slot(r.Count)
}

// Overlaps reports whether two runs share a slot.
func (r Run) Overlaps(o Run) bool {
	return r.Start < o.Start+Slot(o.Count) && o.Start < r.Start+Slot(r.Count)
}

// Slots lists the slots of the run in order.
func (r Run) Slots() []Slot {
	out := make([]Slot, r.Count)
	for i := range out {
		out[i] = r.Start + Slot(i)
	}
	return out
}

// ParseMinutes parses "HH:MM" into minutes since midnight.
func ParseMinutes(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return hour*60 + minute, nil
}

// FormatMinutes formats minutes since midnight as "HH:MM".
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// FormatDuration formats a duration in minutes for display.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh%02d", hours, mins)
}
