// Package calendar owns the server-synchronized calendar state of one
// workspace and the CRUD operations the grid and the edit dialog use.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/clock"
)

// Persistence is the remote event store.
type Persistence interface {
	FetchEvents(ctx context.Context, workspaceID string, start, end time.Time, filter Filter) ([]Event, error)
	CreateEvent(ctx context.Context, workspaceID string, draft Draft) (*Event, error)
	UpdateEvent(ctx context.Context, workspaceID, id string, patch Patch) error
	CancelEvent(ctx context.Context, workspaceID, id, reason string) error
	DeleteEvent(ctx context.Context, workspaceID, id string) error
}

// MemberDirectory lists the members events can be assigned to.
type MemberDirectory interface {
	ListMembers(ctx context.Context, workspaceID string) ([]Member, error)
}

// SettingsSource loads per-workspace calendar preferences.
type SettingsSource interface {
	GetSettings(ctx context.Context, workspaceID string) (*Settings, error)
}

// ChangeKind names an event mutation.
type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeCancelled ChangeKind = "cancelled"
	ChangeResumed   ChangeKind = "resumed"
	ChangeConfirmed ChangeKind = "confirmed"
	ChangeCompleted ChangeKind = "completed"
	ChangeDeleted   ChangeKind = "deleted"
)

// Change describes a persisted event mutation for downstream consumers
// such as reminder scheduling and external calendar sync.
type Change struct {
	Kind        ChangeKind `json:"kind"`
	WorkspaceID string     `json:"workspaceId"`
	EventID     string     `json:"eventId"`
	Event       *Event     `json:"event,omitempty"`
	At          time.Time  `json:"at"`
}

// Publisher broadcasts event changes.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Deps are the collaborators of an Orchestrator. Members, Settings and
// Publisher are optional.
type Deps struct {
	Store     Persistence
	Members   MemberDirectory
	Settings  SettingsSource
	Publisher Publisher
	Clock     clock.Clock
	Logger    *zap.Logger
	Palette   []string
}

// Orchestrator holds the events of the visible range for one workspace.
// Mutations lock only the event they touch, so independent events can be
// updated concurrently.
type Orchestrator struct {
	workspaceID string
	store       Persistence
	members     MemberDirectory
	settingsSrc SettingsSource
	publisher   Publisher
	clock       clock.Clock
	logger      *zap.Logger
	colors      *ColorAssigner

	mu         sync.RWMutex
	view       ViewMode
	anchor     time.Time
	filter     Filter
	events     map[string]Event
	memberList []Member
	settings   Settings

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(workspaceID string, deps Deps) *Orchestrator {
	o := &Orchestrator{
		workspaceID: workspaceID,
		store:       deps.Store,
		members:     deps.Members,
		settingsSrc: deps.Settings,
		publisher:   deps.Publisher,
		clock:       deps.Clock,
		logger:      deps.Logger,
		colors:      NewColorAssigner(deps.Palette),
		view:        ViewWeek,
		events:      make(map[string]Event),
		settings:    DefaultSettings(),
		locks:       make(map[string]*sync.Mutex),
	}
	if o.clock == nil {
		o.clock = clock.System{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("calendar").With(zap.String("workspace_id", workspaceID))
	o.anchor = o.clock.Now()
	return o
}

// WorkspaceID is the workspace this orchestrator serves.
func (o *Orchestrator) WorkspaceID() string { return o.workspaceID }

// SetAssigneeFilter limits Refresh to events assigned to memberID; an empty
// id clears the filter.
func (o *Orchestrator) SetAssigneeFilter(memberID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if memberID == "" {
		o.filter = Filter{}
		return
	}
	o.filter = Filter{AssignedTo: &memberID}
}

// Refresh reloads events for the visible range. Errors are returned to the
// caller; existing state is kept on failure.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if o.workspaceID == "" {
		return ErrNoWorkspace
	}
	o.mu.RLock()
	r := RangeFor(o.view, o.anchor)
	filter := o.filter
	o.mu.RUnlock()

	events, err := o.store.FetchEvents(ctx, o.workspaceID, r.Start, r.End, filter)
	if err != nil {
		o.logger.Error("fetch events failed", zap.Time("start", r.Start), zap.Time("end", r.End), zap.Error(err))
		return fmt.Errorf("fetch events: %w", err)
	}

	loaded := make(map[string]Event, len(events))
	for _, ev := range events {
		loaded[ev.ID] = ev
	}
	o.mu.Lock()
	o.events = loaded
	o.mu.Unlock()
	o.logger.Debug("events refreshed", zap.Int("count", len(events)))
	return nil
}

// LoadMembers fetches the member directory and assigns colors in
// directory order.
func (o *Orchestrator) LoadMembers(ctx context.Context) ([]Member, error) {
	if o.members == nil {
		return nil, nil
	}
	members, err := o.members.ListMembers(ctx, o.workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	for _, m := range members {
		o.colors.Color(m.ID)
	}
	o.mu.Lock()
	o.memberList = members
	o.mu.Unlock()
	return members, nil
}

// LoadSettings fetches workspace preferences, falling back to defaults.
func (o *Orchestrator) LoadSettings(ctx context.Context) (Settings, error) {
	if o.settingsSrc == nil {
		return o.Settings(), nil
	}
	s, err := o.settingsSrc.GetSettings(ctx, o.workspaceID)
	if err != nil {
		return o.Settings(), fmt.Errorf("load settings: %w", err)
	}
	if s == nil {
		return o.Settings(), nil
	}
	o.mu.Lock()
	o.settings = *s
	o.mu.Unlock()
	return *s, nil
}

// Settings returns the loaded preferences.
func (o *Orchestrator) Settings() Settings {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settings
}

// Members returns the last loaded member list.
func (o *Orchestrator) Members() []Member {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Member, len(o.memberList))
	copy(out, o.memberList)
	return out
}

// MemberColor returns the stable display color for a member.
func (o *Orchestrator) MemberColor(memberID string) string {
	return o.colors.Color(memberID)
}

// Events returns the loaded events ordered by start time.
func (o *Orchestrator) Events() []Event {
	o.mu.RLock()
	out := make([]Event, 0, len(o.events))
	for _, ev := range o.events {
		out = append(out, ev)
	}
	o.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Event returns a loaded event by id.
func (o *Orchestrator) Event(id string) (Event, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ev, ok := o.events[id]
	return ev, ok
}

// CreateEvent validates and persists a new event. Missing type and status
// fall back to the workspace default and confirmed; a missing end uses the
// type's default duration.
func (o *Orchestrator) CreateEvent(ctx context.Context, d Draft) (Event, error) {
	if o.workspaceID == "" {
		return Event{}, ErrNoWorkspace
	}
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return Event{}, ErrTitleRequired
	}
	if d.Type == "" {
		d.Type = o.Settings().DefaultEventType
	}
	if !d.Type.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrInvalidEventType, d.Type)
	}
	if d.Status == "" {
		d.Status = StatusConfirmed
	}
	if !d.Status.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrInvalidStatus, d.Status)
	}
	if d.EndTime.IsZero() {
		d.EndTime = d.StartTime.Add(d.Type.DefaultDuration())
	}
	if !d.EndTime.After(d.StartTime) {
		return Event{}, ErrInvalidRange
	}

	created, err := o.store.CreateEvent(ctx, o.workspaceID, d)
	if err != nil {
		o.logger.Error("create event failed", zap.String("title", d.Title), zap.Error(err))
		return Event{}, fmt.Errorf("create event: %w", err)
	}

	o.mu.Lock()
	if RangeFor(o.view, o.anchor).Contains(created.StartTime) {
		o.events[created.ID] = *created
	}
	o.mu.Unlock()

	o.publish(ctx, ChangeCreated, created.ID, created)
	return *created, nil
}

// UpdateEvent applies a partial update. The merged result is validated
// against the loaded copy when one exists.
func (o *Orchestrator) UpdateEvent(ctx context.Context, id string, p Patch) error {
	return o.update(ctx, id, p, ChangeUpdated)
}

// UpdateEventTimes moves or resizes an event. Cancelled and completed
// events are refused.
func (o *Orchestrator) UpdateEventTimes(ctx context.Context, id string, start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	return o.update(ctx, id, Patch{StartTime: &start, EndTime: &end}, ChangeUpdated)
}

func (o *Orchestrator) update(ctx context.Context, id string, p Patch, kind ChangeKind) error {
	if o.workspaceID == "" {
		return ErrNoWorkspace
	}
	if p.Empty() {
		return nil
	}
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return ErrTitleRequired
		}
		p.Title = &t
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEventType, *p.Type)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}

	unlock := o.lockEvent(id)
	defer unlock()

	current, loaded := o.Event(id)
	if loaded && p.TimesOnly() && current.Status.ReadOnly() {
		return fmt.Errorf("%w: %s is %s", ErrReadOnly, id, current.Status)
	}
	if loaded {
		merged := p.ApplyTo(current)
		if !merged.EndTime.After(merged.StartTime) {
			return ErrInvalidRange
		}
	} else if p.StartTime != nil && p.EndTime != nil && !p.EndTime.After(*p.StartTime) {
		return ErrInvalidRange
	}

	if err := o.store.UpdateEvent(ctx, o.workspaceID, id, p); err != nil {
		o.logger.Error("update event failed", zap.String("event_id", id), zap.Error(err))
		return fmt.Errorf("update event %s: %w", id, err)
	}

	var updated *Event
	if loaded {
		merged := p.ApplyTo(current)
		merged.UpdatedAt = o.clock.Now()
		o.mu.Lock()
		o.events[id] = merged
		o.mu.Unlock()
		updated = &merged
	}
	o.publish(ctx, kind, id, updated)
	return nil
}

// CancelEvent soft-deletes an event; it stays visible as read-only and can
// be resumed.
func (o *Orchestrator) CancelEvent(ctx context.Context, id, reason string) error {
	if o.workspaceID == "" {
		return ErrNoWorkspace
	}
	unlock := o.lockEvent(id)
	defer unlock()

	if err := o.store.CancelEvent(ctx, o.workspaceID, id, reason); err != nil {
		o.logger.Error("cancel event failed", zap.String("event_id", id), zap.Error(err))
		return fmt.Errorf("cancel event %s: %w", id, err)
	}

	var updated *Event
	o.mu.Lock()
	if ev, ok := o.events[id]; ok {
		ev.Status = StatusCancelled
		ev.CancelReason = reason
		ev.UpdatedAt = o.clock.Now()
		o.events[id] = ev
		updated = &ev
	}
	o.mu.Unlock()
	o.publish(ctx, ChangeCancelled, id, updated)
	return nil
}

// ResumeEvent reverses a cancellation.
func (o *Orchestrator) ResumeEvent(ctx context.Context, id string) error {
	if ev, ok := o.Event(id); ok && ev.Status != StatusCancelled {
		return fmt.Errorf("%w: cannot resume %s event", ErrInvalidStatus, ev.Status)
	}
	status := StatusConfirmed
	reason := ""
	return o.update(ctx, id, Patch{Status: &status, CancelReason: &reason}, ChangeResumed)
}

// ConfirmEvent promotes a tentative event to confirmed.
func (o *Orchestrator) ConfirmEvent(ctx context.Context, id string) error {
	if ev, ok := o.Event(id); ok {
		switch ev.Status {
		case StatusConfirmed:
			return nil
		case StatusTentative:
		default:
			return fmt.Errorf("%w: cannot confirm %s event", ErrInvalidStatus, ev.Status)
		}
	}
	status := StatusConfirmed
	return o.update(ctx, id, Patch{Status: &status}, ChangeConfirmed)
}

// CompleteEvent marks an event done, locking it against drag and resize.
func (o *Orchestrator) CompleteEvent(ctx context.Context, id string) error {
	if ev, ok := o.Event(id); ok && ev.Status == StatusCancelled {
		return fmt.Errorf("%w: cannot complete a cancelled event", ErrInvalidStatus)
	}
	status := StatusCompleted
	return o.update(ctx, id, Patch{Status: &status}, ChangeCompleted)
}

// DeleteEvent permanently removes an event.
func (o *Orchestrator) DeleteEvent(ctx context.Context, id string) error {
	if o.workspaceID == "" {
		return ErrNoWorkspace
	}
	unlock := o.lockEvent(id)
	defer unlock()

	if err := o.store.DeleteEvent(ctx, o.workspaceID, id); err != nil {
		o.logger.Error("delete event failed", zap.String("event_id", id), zap.Error(err))
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	o.mu.Lock()
	delete(o.events, id)
	o.mu.Unlock()
	o.publish(ctx, ChangeDeleted, id, nil)
	return nil
}

func (o *Orchestrator) lockEvent(id string) func() {
	o.locksMu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &sync.Mutex{}
		o.locks[id] = l
	}
	o.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (o *Orchestrator) publish(ctx context.Context, kind ChangeKind, id string, ev *Event) {
	if o.publisher == nil {
		return
	}
	change := Change{Kind: kind, WorkspaceID: o.workspaceID, EventID: id, Event: ev, At: o.clock.Now()}
	if err := o.publisher.Publish(ctx, change); err != nil {
		o.logger.Warn("publish event change failed",
			zap.String("event_id", id),
			zap.String("change", string(kind)),
			zap.Error(err))
	}
}
