package calendar

import (
	"fmt"
	"time"

	"github.com/jw6ventures/crmcal/internal/grid"
)

// ViewMode selects how much time the orchestrator loads.
type ViewMode string

const (
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
)

// ParseViewMode parses "week" or "month".
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewWeek, ViewMonth:
		return ViewMode(s), nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// Range is a half-open [Start, End) interval.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls in the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// RangeFor returns the interval loaded for the given mode around anchor.
// Weeks start on Sunday; months cover whole calendar months.
func RangeFor(mode ViewMode, anchor time.Time) Range {
	if mode == ViewMonth {
		y, m, _ := anchor.Date()
		start := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
		return Range{Start: start, End: start.AddDate(0, 1, 0)}
	}
	week := grid.WeekStartingSunday(anchor)
	return Range{Start: week[0], End: week[0].AddDate(0, 0, grid.DaysPerWeek)}
}

// Anchor is the date the visible range is built around.
func (o *Orchestrator) Anchor() time.Time {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.anchor
}

// View is the current view mode.
func (o *Orchestrator) View() ViewMode {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.view
}

// Range is the currently visible interval.
func (o *Orchestrator) Range() Range {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return RangeFor(o.view, o.anchor)
}

// SetView switches between week and month views.
func (o *Orchestrator) SetView(mode ViewMode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.view = mode
}

// GoTo moves the anchor to t.
func (o *Orchestrator) GoTo(t time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.anchor = grid.StartOfDay(t)
}

// Today moves the anchor to the current day.
func (o *Orchestrator) Today() {
	o.GoTo(o.clock.Now())
}

func (o *Orchestrator) shift(months, days int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if months != 0 {
		// Pin to the first so Jan 31 + 1 month does not skip February.
		y, m, _ := o.anchor.Date()
		o.anchor = time.Date(y, m, 1, 0, 0, 0, 0, o.anchor.Location()).AddDate(0, months, 0)
		return
	}
	o.anchor = o.anchor.AddDate(0, 0, days)
}

func (o *Orchestrator) NextWeek()  { o.shift(0, 7) }
func (o *Orchestrator) PrevWeek()  { o.shift(0, -7) }
func (o *Orchestrator) NextMonth() { o.shift(1, 0) }
func (o *Orchestrator) PrevMonth() { o.shift(-1, 0) }

// Navigate applies a named navigation step: "next", "prev" or "today",
// stepping by the current view mode.
func (o *Orchestrator) Navigate(step string) error {
	month := o.View() == ViewMonth
	switch step {
	case "next":
		if month {
			o.NextMonth()
		} else {
			o.NextWeek()
		}
	case "prev":
		if month {
			o.PrevMonth()
		} else {
			o.PrevWeek()
		}
	case "today":
		o.Today()
	default:
		return fmt.Errorf("unknown navigation step %q", step)
	}
	return nil
}
