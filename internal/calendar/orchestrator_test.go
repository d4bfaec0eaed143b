package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jw6ventures/crmcal/internal/clock"
)

type fakeStore struct {
	mu        sync.Mutex
	events    []Event
	fetchErr  error
	updateErr error
	created   []Draft
	updates   map[string][]Patch
	cancelled map[string]string
	deleted   []string
	lastRange [2]time.Time
	filter    Filter
}

func newFakeStore(events ...Event) *fakeStore {
	return &fakeStore{events: events, updates: map[string][]Patch{}, cancelled: map[string]string{}}
}

func (f *fakeStore) FetchEvents(ctx context.Context, workspaceID string, start, end time.Time, filter Filter) ([]Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastRange = [2]time.Time{start, end}
	f.filter = filter
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]Event(nil), f.events...), nil
}

func (f *fakeStore) CreateEvent(ctx context.Context, workspaceID string, d Draft) (*Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, d)
	return &Event{
		ID: "new-1", WorkspaceID: workspaceID, StartTime: d.StartTime, EndTime: d.EndTime,
		Title: d.Title, Type: d.Type, Status: d.Status,
	}, nil
}

func (f *fakeStore) UpdateEvent(ctx context.Context, workspaceID, id string, p Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates[id] = append(f.updates[id], p)
	return nil
}

func (f *fakeStore) CancelEvent(ctx context.Context, workspaceID, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled[id] = reason
	return nil
}

func (f *fakeStore) DeleteEvent(ctx context.Context, workspaceID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

type fakePublisher struct {
	mu      sync.Mutex
	changes []Change
	err     error
}

func (p *fakePublisher) Publish(ctx context.Context, c Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

type fakeMembers struct{ members []Member }

func (f fakeMembers) ListMembers(ctx context.Context, workspaceID string) ([]Member, error) {
	return f.members, nil
}

// Wednesday 2024-03-13.
var testNow = time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

func at(day, hour, min int) time.Time {
	return time.Date(2024, 3, day, hour, min, 0, 0, time.UTC)
}

func newTestOrchestrator(t *testing.T, store *fakeStore, pub Publisher) *Orchestrator {
	t.Helper()
	o := New("ws-1", Deps{Store: store, Publisher: pub, Clock: clock.NewFake(testNow)})
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return o
}

func TestRefreshLoadsVisibleWeek(t *testing.T) {
	store := newFakeStore(
		Event{ID: "b", StartTime: at(14, 9, 0), EndTime: at(14, 10, 0), Status: StatusConfirmed},
		Event{ID: "a", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0), Status: StatusConfirmed},
	)
	o := newTestOrchestrator(t, store, nil)

	if want := at(10, 0, 0); !store.lastRange[0].Equal(want) {
		t.Fatalf("range start = %v, want %v", store.lastRange[0], want)
	}
	if want := at(17, 0, 0); !store.lastRange[1].Equal(want) {
		t.Fatalf("range end = %v, want %v", store.lastRange[1], want)
	}
	events := o.Events()
	if len(events) != 2 || events[0].ID != "a" || events[1].ID != "b" {
		t.Fatalf("events not sorted by start: %+v", events)
	}
}

func TestRefreshFailureKeepsState(t *testing.T) {
	store := newFakeStore(Event{ID: "a", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0)})
	o := newTestOrchestrator(t, store, nil)

	store.fetchErr = errors.New("boom")
	if err := o.Refresh(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := o.Event("a"); !ok {
		t.Fatal("previous events should survive a failed refresh")
	}
}

func TestRefreshRequiresWorkspace(t *testing.T) {
	o := New("", Deps{Store: newFakeStore()})
	if err := o.Refresh(context.Background()); !errors.Is(err, ErrNoWorkspace) {
		t.Fatalf("err = %v, want ErrNoWorkspace", err)
	}
}

func TestAssigneeFilterPassedToStore(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(t, store, nil)
	o.SetAssigneeFilter("m-2")
	if err := o.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if store.filter.AssignedTo == nil || *store.filter.AssignedTo != "m-2" {
		t.Fatalf("filter = %+v", store.filter)
	}
	o.SetAssigneeFilter("")
	_ = o.Refresh(context.Background())
	if store.filter.AssignedTo != nil {
		t.Fatal("filter should be cleared")
	}
}

func TestCreateEventValidation(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr error
	}{
		{"blank title", Draft{Title: "  ", StartTime: at(13, 9, 0)}, ErrTitleRequired},
		{"bad type", Draft{Title: "x", Type: "party", StartTime: at(13, 9, 0)}, ErrInvalidEventType},
		{"bad status", Draft{Title: "x", Status: "maybe", StartTime: at(13, 9, 0)}, ErrInvalidStatus},
		{"end before start", Draft{Title: "x", StartTime: at(13, 9, 0), EndTime: at(13, 8, 0)}, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			o := newTestOrchestrator(t, store, nil)
			if _, err := o.CreateEvent(context.Background(), tt.draft); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if len(store.created) != 0 {
				t.Fatal("store should not be called on invalid input")
			}
		})
	}
}

func TestCreateEventDefaults(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	o := newTestOrchestrator(t, store, pub)

	ev, err := o.CreateEvent(context.Background(), Draft{Title: " Intro call ", Type: TypeCall, StartTime: at(13, 9, 0)})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if ev.Title != "Intro call" || ev.Status != StatusConfirmed {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !ev.EndTime.Equal(at(13, 9, 30)) {
		t.Fatalf("end = %v, want call default of 30m", ev.EndTime)
	}
	if _, ok := o.Event(ev.ID); !ok {
		t.Fatal("created event in visible range should be loaded")
	}
	if len(pub.changes) != 1 || pub.changes[0].Kind != ChangeCreated {
		t.Fatalf("changes = %+v", pub.changes)
	}

	ev2, err := o.CreateEvent(context.Background(), Draft{Title: "Later", StartTime: at(27, 9, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if ev2.Type != TypeMeeting {
		t.Fatalf("type = %q, want workspace default", ev2.Type)
	}
}

func TestUpdateEventTimes(t *testing.T) {
	store := newFakeStore(Event{ID: "e1", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0), Title: "Demo", Status: StatusConfirmed})
	pub := &fakePublisher{}
	o := newTestOrchestrator(t, store, pub)

	if err := o.UpdateEventTimes(context.Background(), "e1", at(13, 14, 15), at(13, 15, 15)); err != nil {
		t.Fatalf("UpdateEventTimes: %v", err)
	}
	ev, _ := o.Event("e1")
	if !ev.StartTime.Equal(at(13, 14, 15)) || !ev.EndTime.Equal(at(13, 15, 15)) {
		t.Fatalf("event not updated: %+v", ev)
	}
	if len(store.updates["e1"]) != 1 {
		t.Fatalf("updates = %+v", store.updates)
	}
	if len(pub.changes) != 1 || pub.changes[0].Kind != ChangeUpdated {
		t.Fatalf("changes = %+v", pub.changes)
	}

	if err := o.UpdateEventTimes(context.Background(), "e1", at(13, 15, 0), at(13, 15, 0)); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestUpdateEventTimesRefusesReadOnly(t *testing.T) {
	store := newFakeStore(
		Event{ID: "c", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0), Title: "x", Status: StatusCancelled},
		Event{ID: "d", StartTime: at(12, 11, 0), EndTime: at(12, 12, 0), Title: "y", Status: StatusCompleted},
	)
	o := newTestOrchestrator(t, store, nil)

	for _, id := range []string{"c", "d"} {
		if err := o.UpdateEventTimes(context.Background(), id, at(13, 9, 0), at(13, 10, 0)); !errors.Is(err, ErrReadOnly) {
			t.Fatalf("%s: err = %v, want ErrReadOnly", id, err)
		}
	}
	if len(store.updates) != 0 {
		t.Fatalf("store called: %+v", store.updates)
	}

	title := "renamed"
	if err := o.UpdateEvent(context.Background(), "c", Patch{Title: &title}); err != nil {
		t.Fatalf("title edit on cancelled event: %v", err)
	}
}

func TestPatchTimesOnly(t *testing.T) {
	start := at(13, 9, 0)
	title := "x"
	status := StatusConfirmed
	tests := []struct {
		name string
		p    Patch
		want bool
	}{
		{"empty", Patch{}, false},
		{"start", Patch{StartTime: &start}, true},
		{"start and end", Patch{StartTime: &start, EndTime: &start}, true},
		{"with title", Patch{StartTime: &start, Title: &title}, false},
		{"with status", Patch{EndTime: &start, Status: &status}, false},
	}
	for _, tt := range tests {
		if got := tt.p.TimesOnly(); got != tt.want {
			t.Errorf("%s: TimesOnly = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUpdateEventRejectsMergedInvalidRange(t *testing.T) {
	store := newFakeStore(Event{ID: "e1", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0), Title: "x"})
	o := newTestOrchestrator(t, store, nil)

	start := at(12, 11, 0)
	if err := o.UpdateEvent(context.Background(), "e1", Patch{StartTime: &start}); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
	if len(store.updates) != 0 {
		t.Fatal("store should not be called")
	}
}

func TestUpdateEventStoreFailureLeavesCopy(t *testing.T) {
	store := newFakeStore(Event{ID: "e1", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0), Title: "x"})
	o := newTestOrchestrator(t, store, nil)
	store.updateErr = errors.New("network")

	title := "renamed"
	if err := o.UpdateEvent(context.Background(), "e1", Patch{Title: &title}); err == nil {
		t.Fatal("expected error")
	}
	if ev, _ := o.Event("e1"); ev.Title != "x" {
		t.Fatalf("title = %q, want unchanged", ev.Title)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	store := newFakeStore(
		Event{ID: "t", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0), Title: "x", Status: StatusTentative},
		Event{ID: "c", StartTime: at(12, 11, 0), EndTime: at(12, 12, 0), Title: "y", Status: StatusConfirmed},
	)
	pub := &fakePublisher{}
	o := newTestOrchestrator(t, store, pub)
	ctx := context.Background()

	if err := o.ConfirmEvent(ctx, "t"); err != nil {
		t.Fatalf("ConfirmEvent: %v", err)
	}
	if ev, _ := o.Event("t"); ev.Status != StatusConfirmed {
		t.Fatalf("status = %q", ev.Status)
	}

	if err := o.ResumeEvent(ctx, "c"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("resume of confirmed: err = %v", err)
	}

	if err := o.CancelEvent(ctx, "c", "lead went cold"); err != nil {
		t.Fatalf("CancelEvent: %v", err)
	}
	ev, _ := o.Event("c")
	if ev.Status != StatusCancelled || ev.CancelReason != "lead went cold" {
		t.Fatalf("cancelled event = %+v", ev)
	}
	if !ev.Status.ReadOnly() {
		t.Fatal("cancelled events are read-only")
	}
	if err := o.CompleteEvent(ctx, "c"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("complete of cancelled: err = %v", err)
	}

	if err := o.ResumeEvent(ctx, "c"); err != nil {
		t.Fatalf("ResumeEvent: %v", err)
	}
	ev, _ = o.Event("c")
	if ev.Status != StatusConfirmed || ev.CancelReason != "" {
		t.Fatalf("resumed event = %+v", ev)
	}

	if err := o.CompleteEvent(ctx, "c"); err != nil {
		t.Fatalf("CompleteEvent: %v", err)
	}
	if ev, _ := o.Event("c"); ev.Status != StatusCompleted {
		t.Fatalf("status = %q", ev.Status)
	}

	var kinds []ChangeKind
	for _, c := range pub.changes {
		kinds = append(kinds, c.Kind)
	}
	want := []ChangeKind{ChangeConfirmed, ChangeCancelled, ChangeResumed, ChangeCompleted}
	if len(kinds) != len(want) {
		t.Fatalf("changes = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("changes = %v, want %v", kinds, want)
		}
	}
}

func TestDeleteEvent(t *testing.T) {
	store := newFakeStore(Event{ID: "e1", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0)})
	o := newTestOrchestrator(t, store, nil)
	if err := o.DeleteEvent(context.Background(), "e1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := o.Event("e1"); ok {
		t.Fatal("deleted event still loaded")
	}
	if len(store.deleted) != 1 || store.deleted[0] != "e1" {
		t.Fatalf("deleted = %v", store.deleted)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	store := newFakeStore(Event{ID: "e1", StartTime: at(12, 9, 0), EndTime: at(12, 10, 0)})
	pub := &fakePublisher{err: errors.New("redis down")}
	o := newTestOrchestrator(t, store, pub)
	if err := o.UpdateEventTimes(context.Background(), "e1", at(12, 10, 0), at(12, 11, 0)); err != nil {
		t.Fatalf("publish failure should be swallowed: %v", err)
	}
}

func TestConcurrentUpdatesOnDistinctEvents(t *testing.T) {
	var events []Event
	for i := 0; i < 10; i++ {
		events = append(events, Event{ID: string(rune('a' + i)), StartTime: at(12, i, 0), EndTime: at(12, i+1, 0)})
	}
	store := newFakeStore(events...)
	o := newTestOrchestrator(t, store, nil)

	var wg sync.WaitGroup
	for _, ev := range events {
		wg.Add(1)
		go func(ev Event) {
			defer wg.Done()
			if err := o.UpdateEventTimes(context.Background(), ev.ID, ev.StartTime.Add(time.Hour), ev.EndTime.Add(time.Hour)); err != nil {
				t.Errorf("update %s: %v", ev.ID, err)
			}
		}(ev)
	}
	wg.Wait()
	for _, ev := range events {
		got, _ := o.Event(ev.ID)
		if !got.StartTime.Equal(ev.StartTime.Add(time.Hour)) {
			t.Fatalf("event %s start = %v", ev.ID, got.StartTime)
		}
	}
}

func TestMembersAndColors(t *testing.T) {
	o := New("ws-1", Deps{
		Store:   newFakeStore(),
		Members: fakeMembers{members: []Member{{ID: "m1", Name: "Ana"}, {ID: "m2", Name: "Bo"}}},
	})
	members, err := o.LoadMembers(context.Background())
	if err != nil || len(members) != 2 {
		t.Fatalf("LoadMembers = %v, %v", members, err)
	}
	if got := o.MemberColor("m1"); got != MemberPalette[0] {
		t.Fatalf("m1 color = %q", got)
	}
	if got := o.MemberColor("m2"); got != MemberPalette[1] {
		t.Fatalf("m2 color = %q", got)
	}
	if o.MemberColor("m1") != o.MemberColor("m1") {
		t.Fatal("colors must be stable")
	}
}

func TestColorAssignerWraps(t *testing.T) {
	c := NewColorAssigner([]string{"red", "blue"})
	got := []string{c.Color("a"), c.Color("b"), c.Color("c"), c.Color("a")}
	want := []string{"red", "blue", "red", "red"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("colors = %v, want %v", got, want)
		}
	}
}
