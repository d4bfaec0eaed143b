package layout

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/grid"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return grid.DayAt(monday, hour, minute)
}

func event(id string, start, end time.Time) calendar.Event {
	return calendar.Event{ID: id, StartTime: start, EndTime: end, Status: calendar.StatusConfirmed}
}

func TestProcessDayEmpty(t *testing.T) {
	if got := ProcessDay(nil); got != nil {
		t.Fatalf("expected nil layout, got %v", got)
	}
}

func TestProcessDayOverlappingPair(t *testing.T) {
	a := event("a", at(9, 0), at(10, 0))
	b := event("b", at(9, 30), at(10, 30))

	got := ProcessDay([]calendar.Event{b, a})
	if len(got) != 2 {
		t.Fatalf("expected 2 processed events, got %d", len(got))
	}

	byID := map[string]ProcessedEvent{}
	for _, p := range got {
		byID[p.Event.ID] = p
	}
	if byID["a"].Column == byID["b"].Column {
		t.Errorf("expected different columns, both got %d", byID["a"].Column)
	}
	for id, p := range byID {
		if p.TotalColumns != 2 {
			t.Errorf("%s: TotalColumns = %d, want 2", id, p.TotalColumns)
		}
		if p.Width != 50 {
			t.Errorf("%s: Width = %v, want 50", id, p.Width)
		}
	}
	if byID["a"].Top != 540 || byID["a"].Height != 60 {
		t.Errorf("a: top/height = %v/%v, want 540/60", byID["a"].Top, byID["a"].Height)
	}
	if byID["b"].Left != 50 {
		t.Errorf("b: Left = %v, want 50", byID["b"].Left)
	}
}

func TestProcessDayReusesFreedColumn(t *testing.T) {
	events := []calendar.Event{
		event("a", at(9, 0), at(10, 0)),
		event("b", at(9, 30), at(11, 0)),
		event("c", at(10, 0), at(10, 30)),
	}
	got := ProcessDay(events)
	cols := map[string]int{}
	for _, p := range got {
		cols[p.Event.ID] = p.Column
	}
	if cols["a"] != 0 || cols["b"] != 1 || cols["c"] != 0 {
		t.Errorf("unexpected columns %v", cols)
	}
	if got[0].TotalColumns != 2 {
		t.Errorf("TotalColumns = %d, want 2", got[0].TotalColumns)
	}
}

func TestProcessDayIdenticalEvents(t *testing.T) {
	var events []calendar.Event
	for i := 0; i < 4; i++ {
		events = append(events, event(fmt.Sprintf("e%d", i), at(14, 0), at(15, 0)))
	}
	got := ProcessDay(events)
	for i, p := range got {
		if p.Event.ID != fmt.Sprintf("e%d", i) {
			t.Errorf("position %d: got %s, stable order broken", i, p.Event.ID)
		}
		if p.Column != i {
			t.Errorf("%s: Column = %d, want %d", p.Event.ID, p.Column, i)
		}
		if p.TotalColumns != 4 || p.Width != 25 {
			t.Errorf("%s: total/width = %d/%v, want 4/25", p.Event.ID, p.TotalColumns, p.Width)
		}
		if p.Top != 840 {
			t.Errorf("%s: Top = %v, want 840", p.Event.ID, p.Top)
		}
	}
}

func TestProcessDayMalformedEvent(t *testing.T) {
	got := ProcessDay([]calendar.Event{
		event("inverted", at(9, 0), at(8, 0)),
		event("zero", at(12, 0), at(12, 0)),
	})
	for _, p := range got {
		if p.Height != grid.MinEventHeight {
			t.Errorf("%s: Height = %v, want %v", p.Event.ID, p.Height, grid.MinEventHeight)
		}
	}
}

func TestProcessDayShortEventDoesNotOverlapNext(t *testing.T) {
	got := ProcessDay([]calendar.Event{
		event("short", at(9, 0), at(9, 5)),
		event("next", at(9, 5), at(10, 0)),
	})
	assertNoColumnOverlap(t, got)
}

func TestProcessDayNoColumnOverlap(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		var events []calendar.Event
		n := rng.Intn(12)
		for i := 0; i < n; i++ {
			start := at(rng.Intn(23), rng.Intn(4)*15)
			end := start.Add(time.Duration(rng.Intn(240)-20) * time.Minute)
			events = append(events, event(fmt.Sprintf("r%d-%d", round, i), start, end))
		}
		assertNoColumnOverlap(t, ProcessDay(events))
	}
}

func assertNoColumnOverlap(t *testing.T, events []ProcessedEvent) {
	t.Helper()
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			if Overlaps(events[i], events[j]) {
				t.Fatalf("events %s and %s overlap in column %d", events[i].Event.ID, events[j].Event.ID, events[i].Column)
			}
		}
	}
}
