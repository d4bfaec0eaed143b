// Package weekview turns a week of events into render data for the time
// grid and routes clicks and gestures on it.
package weekview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/clock"
	"github.com/jw6ventures/crmcal/internal/gesture"
	"github.com/jw6ventures/crmcal/internal/grid"
	"github.com/jw6ventures/crmcal/internal/layout"
	"github.com/jw6ventures/crmcal/internal/optimistic"
)

// maxNotifications bounds the undelivered notification queue.
const maxNotifications = 50

// Slot is the cell a create request was made from.
type Slot struct {
	Day   time.Time `json:"day"`
	Hour  int       `json:"hour"`
	Start time.Time `json:"start"`
}

// Opener receives requests to open the event editor. Either callback may
// be nil.
type Opener struct {
	OnCreate func(Slot)
	OnEdit   func(calendar.Event)
}

// Options configure a Model.
type Options struct {
	Clock      clock.Clock
	Opener     Opener
	Suppressor gesture.Suppressor
	Logger     *zap.Logger
	Strict     bool
	// MemberColor resolves the accent color of an assignee. Optional.
	MemberColor func(memberID string) string
}

// Model is one grid session: an optimistic cache, a gesture machine and
// the notifications raised by failed commits.
type Model struct {
	cache       *optimistic.Cache
	machine     *gesture.Machine
	clock       clock.Clock
	opener      Opener
	memberColor func(string) string
	logger      *zap.Logger

	mu    sync.Mutex
	notes []gesture.Notification
}

func New(updater gesture.Updater, opts Options) *Model {
	m := &Model{
		cache:       optimistic.New(),
		clock:       opts.Clock,
		opener:      opts.Opener,
		memberColor: opts.MemberColor,
		logger:      opts.Logger,
	}
	if m.clock == nil {
		m.clock = clock.System{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.machine = gesture.New(m.cache, updater, gesture.Options{
		Clock:      m.clock,
		Suppressor: opts.Suppressor,
		Notifier:   m,
		Logger:     m.logger,
		Strict:     opts.Strict,
	})
	return m
}

// Machine exposes the gesture machine for pointer routing.
func (m *Model) Machine() *gesture.Machine { return m.machine }

// Overrides is the optimistic cache backing this session.
func (m *Model) Overrides() *optimistic.Cache { return m.cache }

// Notify queues a notification for the next poll.
func (m *Model) Notify(n gesture.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = append(m.notes, n)
	if over := len(m.notes) - maxNotifications; over > 0 {
		m.notes = m.notes[over:]
	}
}

// DrainNotifications returns and clears the queued notifications.
func (m *Model) DrainNotifications() []gesture.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notes
	m.notes = nil
	return out
}

// CellClick asks the editor to create an event at the start of the hour
// row. It is ignored while a gesture is in progress.
func (m *Model) CellClick(day time.Time, hour int) (Slot, bool) {
	if hour < 0 || hour >= grid.HoursPerDay {
		return Slot{}, false
	}
	if m.machine.State().Kind != gesture.Idle {
		return Slot{}, false
	}
	slot := Slot{Day: grid.StartOfDay(day), Hour: hour, Start: grid.DayAt(day, hour, 0)}
	if m.opener.OnCreate != nil {
		m.opener.OnCreate(slot)
	}
	return slot, true
}

// EventClick opens the editor for ev unless the click belongs to a gesture
// that is active or has just been released.
func (m *Model) EventClick(ev calendar.Event) bool {
	if m.machine.ShouldSuppressClick() {
		m.logger.Debug("click suppressed", zap.String("event_id", ev.ID))
		return false
	}
	if m.opener.OnEdit != nil {
		m.opener.OnEdit(ev)
	}
	return true
}

// Week is the render data for seven days starting on Sunday.
type Week struct {
	Days       [grid.DaysPerWeek]Day `json:"days"`
	Hours      []HourRow             `json:"hours"`
	Now        *NowIndicator         `json:"now,omitempty"`
	ScrollHour *int                  `json:"scrollHour,omitempty"`
	Gesture    string                `json:"gesture"`
	DropTarget *gesture.DropTarget   `json:"dropTarget,omitempty"`
}

// Day is one grid column.
type Day struct {
	Date    time.Time  `json:"date"`
	Label   string     `json:"label"`
	IsToday bool       `json:"isToday"`
	Events  []EventBox `json:"events"`
}

// HourRow is a gutter label.
type HourRow struct {
	Hour  int     `json:"hour"`
	Label string  `json:"label"`
	Top   float64 `json:"top"`
}

// EventBox is a positioned event with display hints.
type EventBox struct {
	Event        calendar.Event `json:"event"`
	Top          float64        `json:"top"`
	Height       float64        `json:"height"`
	Left         float64        `json:"left"`
	Width        float64        `json:"width"`
	Column       int            `json:"column"`
	TotalColumns int            `json:"totalColumns"`
	TimeLabel    string         `json:"timeLabel"`
	Color        string         `json:"color"`
	AccentColor  string         `json:"accentColor,omitempty"`
	Icon         string         `json:"icon"`
	ReadOnly     bool           `json:"readOnly"`
	Dragging     bool           `json:"dragging,omitempty"`
	Resizing     bool           `json:"resizing,omitempty"`
	Pending      bool           `json:"pending,omitempty"`
}

// NowIndicator is the current-time line.
type NowIndicator struct {
	DayIndex int       `json:"dayIndex"`
	Top      float64   `json:"top"`
	Time     time.Time `json:"time"`
}

var hourRows = func() []HourRow {
	rows := make([]HourRow, grid.HoursPerDay)
	for h := range rows {
		rows[h] = HourRow{Hour: h, Label: fmt.Sprintf("%02d:00", h), Top: float64(h) * grid.HourHeight}
	}
	return rows
}()

// Build lays out the week containing currentDate. Pending overrides
// replace server times, and each event lands on the day of its effective
// start.
func (m *Model) Build(currentDate time.Time, events []calendar.Event) Week {
	now := m.clock.Now()
	dates := grid.WeekStartingSunday(currentDate)
	st := m.machine.State()

	var week Week
	week.Hours = hourRows
	week.Gesture = st.Kind.String()
	if t, ok := m.machine.DropTarget(); ok {
		week.DropTarget = &t
	}

	buckets := make([][]calendar.Event, grid.DaysPerWeek)
	for _, ev := range m.cache.EffectiveAll(events) {
		for i, d := range dates {
			if grid.SameDay(ev.StartTime, d) {
				buckets[i] = append(buckets[i], ev)
				break
			}
		}
	}

	for i, d := range dates {
		day := Day{
			Date:    d,
			Label:   d.Format("Mon 2"),
			IsToday: grid.SameDay(d, now),
			Events:  []EventBox{},
		}
		for _, pe := range layout.ProcessDay(buckets[i]) {
			day.Events = append(day.Events, m.box(pe, st))
		}
		week.Days[i] = day
	}

	if grid.WeekContains(dates, now) {
		for i, d := range dates {
			if grid.SameDay(d, now) {
				week.Now = &NowIndicator{DayIndex: i, Top: grid.TimeToOffset(now), Time: now}
				break
			}
		}
		scroll := now.Hour() - 1
		if scroll < 0 {
			scroll = 0
		}
		week.ScrollHour = &scroll
	}
	return week
}

func (m *Model) box(pe layout.ProcessedEvent, st gesture.State) EventBox {
	ev := pe.Event
	b := EventBox{
		Event:        ev,
		Top:          pe.Top,
		Height:       pe.Height,
		Left:         pe.Left,
		Width:        pe.Width,
		Column:       pe.Column,
		TotalColumns: pe.TotalColumns,
		TimeLabel:    timeLabel(ev.StartTime, ev.EndTime),
		Color:        ev.Type.Color(),
		Icon:         ev.Type.Icon(),
		ReadOnly:     ev.Status.ReadOnly(),
	}
	if m.memberColor != nil && ev.AssignedTo != nil {
		b.AccentColor = m.memberColor(*ev.AssignedTo)
	}
	if _, ok := m.cache.Get(ev.ID); ok {
		b.Pending = true
	}
	if st.Event.ID != ev.ID {
		return b
	}
	switch st.Kind {
	case gesture.Dragging:
		b.Dragging = true
	case gesture.Resizing:
		b.Resizing = true
		b.Height = st.CurrentHeight
		if end, ok := m.machine.LiveEnd(); ok {
			b.TimeLabel = timeLabel(ev.StartTime, end)
		}
	}
	return b
}

func timeLabel(start, end time.Time) string {
	return start.Format("15:04") + " - " + end.Format("15:04")
}

// Wait blocks until p settles or ctx is done. A nil Pending is a no-op.
func Wait(ctx context.Context, p *gesture.Pending) error {
	if p == nil {
		return nil
	}
	select {
	case <-p.Done():
		return p.Wait()
	case <-ctx.Done():
		return ctx.Err()
	}
}
