// Package layout assigns overlapping events of one day to side-by-side
// columns.
package layout

import (
	"math"
	"sort"
	"time"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/grid"
)

// ProcessedEvent is an event positioned inside its day cell. Top and Height
// are pixels; Left and Width are percentages of the cell width.
type ProcessedEvent struct {
	Event        calendar.Event `json:"event"`
	Top          float64        `json:"top"`
	Height       float64        `json:"height"`
	Column       int            `json:"column"`
	TotalColumns int            `json:"totalColumns"`
	Left         float64        `json:"left"`
	Width        float64        `json:"width"`
}

// Bottom is Top plus Height.
func (p ProcessedEvent) Bottom() float64 {
	return p.Top + p.Height
}

// ProcessDay lays out the events of a single day. Events are placed greedily
// by start time into the first column whose last event has ended; this is
// first-fit, not a minimum-column packing.
func ProcessDay(events []calendar.Event) []ProcessedEvent {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]calendar.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var columnEnds []time.Time
	placed := make([]ProcessedEvent, 0, len(sorted))
	for _, ev := range sorted {
		col := -1
		for i, end := range columnEnds {
			if !end.After(ev.StartTime) {
				col = i
				break
			}
		}
		// Unlike plain first-fit on EndTime, the column tracks the rendered
		// end, so a minimum-height block never overlaps the next event placed
		// in the same column.
		end := ev.EndTime
		if minEnd := ev.StartTime.Add(grid.MinEventDuration); end.Before(minEnd) {
			end = minEnd
		}
		if col == -1 {
			columnEnds = append(columnEnds, end)
			col = len(columnEnds) - 1
		} else if end.After(columnEnds[col]) {
			columnEnds[col] = end
		}

		placed = append(placed, ProcessedEvent{
			Event:  ev,
			Top:    grid.TimeToOffset(ev.StartTime),
			Height: Height(ev.StartTime, ev.EndTime),
			Column: col,
		})
	}

	total := len(columnEnds)
	width := 100 / float64(total)
	for i := range placed {
		placed[i].TotalColumns = total
		placed[i].Width = width
		placed[i].Left = float64(placed[i].Column) * width
	}
	return placed
}

// Height is the rendered pixel height of an event spanning start to end.
// Inverted ranges render at the minimum height.
func Height(start, end time.Time) float64 {
	return math.Max(grid.DurationToHeight(end.Sub(start)), grid.MinEventHeight)
}

// Overlaps reports whether two processed events share a column and their
// vertical extents intersect.
func Overlaps(a, b ProcessedEvent) bool {
	if a.Column != b.Column {
		return false
	}
	return a.Top < b.Bottom() && b.Top < a.Bottom()
}
