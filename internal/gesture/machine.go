// Package gesture tracks drag-to-move and drag-to-resize gestures on the
// weekly grid and commits their result through an optimistic override.
package gesture

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/clock"
	"github.com/jw6ventures/crmcal/internal/grid"
	"github.com/jw6ventures/crmcal/internal/metrics"
	"github.com/jw6ventures/crmcal/internal/optimistic"
)

var (
	// ErrReadOnly is returned when a gesture starts on a cancelled or completed event.
	ErrReadOnly = calendar.ErrReadOnly
	// ErrInvalidCell is returned for a drop target outside the day's hour rows.
	ErrInvalidCell = errors.New("hour is outside the grid")
	// ErrGestureActive is returned when a gesture on another event is in progress.
	ErrGestureActive = errors.New("another gesture is in progress")
	// ErrNotDragging is returned by drag operations while no drag is active.
	ErrNotDragging = errors.New("no drag in progress")
	// ErrNotResizing is returned by resize operations while no resize is active.
	ErrNotResizing = errors.New("no resize in progress")
	// ErrInvalidRange is a programming error: a gesture produced end <= start.
	ErrInvalidRange = errors.New("gesture produced an empty or inverted time range")
)

// Kind discriminates the gesture state.
type Kind int

const (
	Idle Kind = iota
	Dragging
	Resizing
)

func (k Kind) String() string {
	switch k {
	case Dragging:
		return "drag"
	case Resizing:
		return "resize"
	}
	return "idle"
}

// State is a snapshot of the active gesture.
type State struct {
	Kind  Kind
	Event calendar.Event

	// PointerOrigin is where a drag started.
	PointerOrigin float64
	// OriginY, OriginHeight and CurrentHeight describe a resize in pixels.
	OriginY       float64
	OriginHeight  float64
	CurrentHeight float64
}

// DropTarget is the snapped cell position under the pointer during a drag.
type DropTarget struct {
	Day     time.Time `json:"day"`
	Hour    int       `json:"hour"`
	Minutes int       `json:"minutes"`
}

// Updater persists a new time range for an event.
type Updater interface {
	UpdateEventTimes(ctx context.Context, id string, start, end time.Time) error
}

// Notification is a non-blocking message for the user, raised when a
// committed gesture fails to persist.
type Notification struct {
	EventID string    `json:"eventId"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
	Err     error     `json:"-"`
}

// Notifier receives gesture failure notifications.
type Notifier interface {
	Notify(n Notification)
}

// Options configure a Machine. Zero values get sensible defaults.
type Options struct {
	Clock      clock.Clock
	Suppressor Suppressor
	Notifier   Notifier
	Logger     *zap.Logger
	// Strict panics on ErrInvalidRange instead of rejecting the gesture.
	Strict bool
}

// Machine is the drag/resize state machine. At most one gesture is active.
type Machine struct {
	cache   *optimistic.Cache
	updater Updater

	clock      clock.Clock
	suppressor Suppressor
	notifier   Notifier
	logger     *zap.Logger
	strict     bool

	mu     sync.Mutex
	state  State
	target *DropTarget
}

func New(cache *optimistic.Cache, updater Updater, opts Options) *Machine {
	m := &Machine{
		cache:      cache,
		updater:    updater,
		clock:      opts.Clock,
		suppressor: opts.Suppressor,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		strict:     opts.Strict,
	}
	if m.clock == nil {
		m.clock = clock.System{}
	}
	if m.suppressor == nil {
		m.suppressor = NewWindowSuppressor(ClickSuppressWindow)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.Named("gesture")
	return m
}

// State returns a snapshot of the current gesture.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// DropTarget returns the current drop indicator, if any.
func (m *Machine) DropTarget() (DropTarget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.target == nil {
		return DropTarget{}, false
	}
	return *m.target, true
}

// begin validates that a gesture on ev may start. Caller holds m.mu.
func (m *Machine) begin(ev calendar.Event, kind Kind) error {
	if ev.Status.ReadOnly() {
		metrics.ObserveGesture(kind.String(), metrics.OutcomeRejected)
		return fmt.Errorf("%w: %s is %s", ErrReadOnly, ev.ID, ev.Status)
	}
	if m.state.Kind != Idle && m.state.Event.ID != ev.ID {
		metrics.ObserveGesture(kind.String(), metrics.OutcomeRejected)
		return ErrGestureActive
	}
	return nil
}

// DragStart captures ev as the drag payload.
func (m *Machine) DragStart(ev calendar.Event, pointerY float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ev, Dragging); err != nil {
		return err
	}
	m.state = State{Kind: Dragging, Event: ev, PointerOrigin: pointerY}
	m.target = nil
	return nil
}

// DragOver records the snapped drop position for the hour row under the
// pointer. offsetY is relative to the top of that row. It is recomputed on
// every call.
func (m *Machine) DragOver(day time.Time, hour int, offsetY float64) (DropTarget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != Dragging {
		return DropTarget{}, ErrNotDragging
	}
	if err := checkHour(hour); err != nil {
		return DropTarget{}, err
	}
	t := DropTarget{Day: grid.StartOfDay(day), Hour: hour, Minutes: grid.OffsetToSnappedMinutes(offsetY)}
	m.target = &t
	return t, nil
}

// Drop completes a drag on the given cell. Minutes come from the last
// DragOver on that cell, or from offsetY when no hover was tracked. The
// event keeps its duration. A drop onto the original start returns a nil
// Pending and issues no update.
func (m *Machine) Drop(ctx context.Context, day time.Time, hour int, offsetY float64) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != Dragging {
		return nil, ErrNotDragging
	}
	if err := checkHour(hour); err != nil {
		return nil, err
	}

	minutes := grid.OffsetToSnappedMinutes(offsetY)
	if m.target != nil && grid.SameDay(m.target.Day, day) && m.target.Hour == hour {
		minutes = m.target.Minutes
	}

	ev := m.state.Event
	m.state = State{}
	m.target = nil

	newStart := grid.DayAt(day, hour, minutes)
	if newStart.Equal(ev.StartTime) {
		m.suppressor.Arm(m.clock.Now())
		metrics.ObserveGesture(Dragging.String(), metrics.OutcomeNoop)
		return nil, nil
	}
	newEnd := newStart.Add(ev.EndTime.Sub(ev.StartTime))
	return m.commit(ctx, Dragging, ev, newStart, newEnd)
}

// DragEnd clears drag state whether or not a drop happened.
func (m *Machine) DragEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind == Dragging {
		metrics.ObserveGesture(Dragging.String(), metrics.OutcomeCancelled)
		m.state = State{}
	}
	m.target = nil
}

// ResizeStart begins resizing ev from its bottom edge.
func (m *Machine) ResizeStart(ev calendar.Event, currentHeight, pointerY float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.begin(ev, Resizing); err != nil {
		return err
	}
	m.state = State{
		Kind:          Resizing,
		Event:         ev,
		OriginY:       pointerY,
		OriginHeight:  currentHeight,
		CurrentHeight: currentHeight,
	}
	m.target = nil
	return nil
}

// ResizeMove tracks the pointer and returns the live, snapped height. The
// height never drops below one snap quantum.
func (m *Machine) ResizeMove(pointerY float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != Resizing {
		return 0, ErrNotResizing
	}
	delta := grid.SnapDelta(pointerY - m.state.OriginY)
	m.state.CurrentHeight = math.Max(grid.SnapQuantum, m.state.OriginHeight+delta)
	return m.state.CurrentHeight, nil
}

// LiveEnd is the end time implied by the current resize height.
func (m *Machine) LiveEnd() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != Resizing {
		return time.Time{}, false
	}
	return m.state.Event.StartTime.Add(grid.HeightToDuration(m.state.CurrentHeight)), true
}

// ResizeEnd commits the resize. The start time never changes. Releasing
// without changing the end returns a nil Pending and issues no update.
func (m *Machine) ResizeEnd(ctx context.Context) (*Pending, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != Resizing {
		return nil, ErrNotResizing
	}
	st := m.state
	m.state = State{}

	ev := st.Event
	newEnd := ev.StartTime.Add(grid.HeightToDuration(st.CurrentHeight))
	if st.CurrentHeight == st.OriginHeight || newEnd.Equal(ev.EndTime) {
		m.suppressor.Arm(m.clock.Now())
		metrics.ObserveGesture(Resizing.String(), metrics.OutcomeNoop)
		return nil, nil
	}
	return m.commit(ctx, Resizing, ev, ev.StartTime, newEnd)
}

// Cancel abandons any gesture without issuing an update.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Kind != Idle {
		metrics.ObserveGesture(m.state.Kind.String(), metrics.OutcomeCancelled)
	}
	m.state = State{}
	m.target = nil
}

// ShouldSuppressClick reports whether an event click should be ignored
// because a gesture is active or has just completed.
func (m *Machine) ShouldSuppressClick() bool {
	m.mu.Lock()
	active := m.state.Kind != Idle
	m.mu.Unlock()
	if active {
		return true
	}
	return m.suppressor.Suppress(m.clock.Now())
}

// commit installs the override and persists it in the background. When the
// update settles, whatever its outcome, the override is cleared unless a
// later gesture on the same event replaced it. Caller holds m.mu.
func (m *Machine) commit(ctx context.Context, kind Kind, ev calendar.Event, start, end time.Time) (*Pending, error) {
	if !end.After(start) {
		err := fmt.Errorf("%w: %s %s-%s", ErrInvalidRange, ev.ID, start.Format(time.RFC3339), end.Format(time.RFC3339))
		if m.strict {
			panic(err)
		}
		m.logger.Error("rejected gesture", zap.String("event_id", ev.ID), zap.Error(err))
		metrics.ObserveGesture(kind.String(), metrics.OutcomeRejected)
		return nil, err
	}

	override := m.cache.Set(ev.ID, optimistic.Override{StartTime: start, EndTime: end})
	m.suppressor.Arm(m.clock.Now())
	metrics.ObserveGesture(kind.String(), metrics.OutcomeCommitted)

	p := &Pending{EventID: ev.ID, Kind: kind, Override: override, done: make(chan struct{})}
	observe := metrics.TrackMutation(kind.String())
	go func() {
		defer close(p.done)
		defer m.cache.ClearIf(ev.ID, override)

		err := m.updater.UpdateEventTimes(ctx, ev.ID, start, end)
		observe(err)
		if err != nil {
			m.logger.Warn("event update failed, reverting",
				zap.String("event_id", ev.ID),
				zap.Stringer("gesture", kind),
				zap.Error(err))
			if m.notifier != nil {
				m.notifier.Notify(Notification{
					EventID: ev.ID,
					Message: fmt.Sprintf("Could not save %q, it has been moved back.", ev.Title),
					At:      m.clock.Now(),
					Err:     err,
				})
			}
		}
		p.err = err
	}()
	return p, nil
}

func checkHour(hour int) error {
	if hour < 0 || hour >= grid.HoursPerDay {
		return fmt.Errorf("%w: %d", ErrInvalidCell, hour)
	}
	return nil
}

// Pending is an in-flight mutation started by a gesture.
type Pending struct {
	EventID  string
	Kind     Kind
	Override optimistic.Override

	done chan struct{}
	err  error
}

// Done is closed once the mutation settled and its override was cleared.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the mutation settles and returns its error.
func (p *Pending) Wait() error {
	<-p.done
	return p.err
}
