package ui

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/gesture"
	"github.com/jw6ventures/crmcal/internal/http/errors"
	"github.com/jw6ventures/crmcal/internal/weekview"
	"github.com/jw6ventures/crmcal/internal/workspace"
)

// EditorRequest asks the client to open the event dialog, either blank at
// a slot or filled with an existing event.
type EditorRequest struct {
	Mode  string          `json:"mode"`
	Slot  *weekview.Slot  `json:"slot,omitempty"`
	Event *calendar.Event `json:"event,omitempty"`
}

// session is one open grid: its own view of the calendar, the gesture
// machine and the editor requests raised since the last click.
type session struct {
	id          string
	workspaceID string
	memberID    string
	orch        *calendar.Orchestrator
	model       *weekview.Model

	mu       sync.Mutex
	editor   *EditorRequest
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *session) setEditor(req EditorRequest) {
	s.mu.Lock()
	s.editor = &req
	s.mu.Unlock()
}

// takeEditor returns and clears the pending editor request.
func (s *session) takeEditor() *EditorRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.editor
	s.editor = nil
	return req
}

type sessionRegistry struct {
	idle time.Duration

	mu   sync.Mutex
	byID map[string]*session
}

func newSessionRegistry(idle time.Duration) *sessionRegistry {
	return &sessionRegistry{idle: idle, byID: make(map[string]*session)}
}

func (r *sessionRegistry) add(s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.id] = s
}

func (r *sessionRegistry) get(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *sessionRegistry) remove(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	delete(r.byID, id)
	return s, ok
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// sweep removes sessions idle longer than the timeout and cancels any
// gesture they left open. Commits already in flight still settle.
func (r *sessionRegistry) sweep(now time.Time) int {
	cutoff := now.Add(-r.idle)
	var expired []*session
	r.mu.Lock()
	for id, s := range r.byID {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.byID, id)
		}
	}
	r.mu.Unlock()
	for _, s := range expired {
		s.model.Machine().Cancel()
	}
	return len(expired)
}

type sessionResponse struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspaceId"`
	View        string         `json:"view"`
	Range       calendar.Range `json:"range"`
}

type weekResponse struct {
	SessionID     string                 `json:"sessionId"`
	Range         calendar.Range         `json:"range"`
	Week          weekview.Week          `json:"week"`
	Notifications []gesture.Notification `json:"notifications"`
}

// CreateSession opens a grid session for the caller's workspace.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}
	orch, err := h.newOrchestrator(r.Context(), wsID)
	if err != nil {
		errors.InternalError(w, r, err, "failed to open grid session")
		return
	}

	s := &session{
		id:          uuid.NewString(),
		workspaceID: wsID,
		memberID:    workspace.MemberIDFromContext(r.Context()),
		orch:        orch,
		lastSeen:    h.clock.Now(),
	}
	s.model = weekview.New(orch, weekview.Options{
		Clock: h.clock,
		Opener: weekview.Opener{
			OnCreate: func(slot weekview.Slot) { s.setEditor(EditorRequest{Mode: "create", Slot: &slot}) },
			OnEdit:   func(ev calendar.Event) { s.setEditor(EditorRequest{Mode: "edit", Event: &ev}) },
		},
		Suppressor:  h.suppressor(),
		Logger:      h.logger.With(zap.String("session_id", s.id)),
		Strict:      h.cfg.Grid.StrictGestures,
		MemberColor: orch.MemberColor,
	})
	h.sessions.add(s)
	h.logger.Debug("grid session opened", zap.String("session_id", s.id), zap.String("workspace_id", wsID))

	writeJSON(w, http.StatusCreated, sessionResponse{
		ID:          s.id,
		WorkspaceID: wsID,
		View:        string(orch.View()),
		Range:       orch.Range(),
	})
}

// session resolves the {sid} route parameter. Sessions of other
// workspaces are reported as missing.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return nil, false
	}
	s, ok := h.sessions.get(chi.URLParam(r, "sid"))
	if !ok || s.workspaceID != wsID {
		errors.NotFound(w, r, "grid session not found")
		return nil, false
	}
	s.touch(h.clock.Now())
	return s, true
}

// GetWeek refreshes the session's events for the week containing ?date
// (default: the session's current anchor) and returns the render data
// with any queued failure notifications.
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if v := q.Get("date"); v != "" {
		day, err := parseDay(v, h.clock.Now().Location())
		if err != nil {
			errors.BadRequestError(w, r, err, err.Error())
			return
		}
		s.orch.GoTo(day)
	}
	if q.Has("assignedTo") {
		s.orch.SetAssigneeFilter(q.Get("assignedTo"))
	}
	s.orch.SetView(calendar.ViewWeek)
	if err := s.orch.Refresh(r.Context()); err != nil {
		errors.FromDomain(w, r, err)
		return
	}

	notes := s.model.DrainNotifications()
	if notes == nil {
		notes = []gesture.Notification{}
	}
	writeJSON(w, http.StatusOK, weekResponse{
		SessionID:     s.id,
		Range:         s.orch.Range(),
		Week:          s.model.Build(s.orch.Anchor(), s.orch.Events()),
		Notifications: notes,
	})
}

// CloseSession drops a grid session, cancelling any open gesture.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, ok := h.sessions.remove(s.id); ok {
		s.model.Machine().Cancel()
	}
	w.WriteHeader(http.StatusNoContent)
}
