package ui

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/gesture"
	"github.com/jw6ventures/crmcal/internal/http/errors"
	"github.com/jw6ventures/crmcal/internal/weekview"
)

// waitTimeout bounds how long ?wait=1 blocks on a commit.
const waitTimeout = 10 * time.Second

type dragStartRequest struct {
	EventID  string  `json:"eventId"`
	PointerY float64 `json:"pointerY"`
}

type cellRequest struct {
	Day     string  `json:"day"`
	Hour    int     `json:"hour"`
	OffsetY float64 `json:"offsetY"`
}

type resizeStartRequest struct {
	EventID       string  `json:"eventId"`
	CurrentHeight float64 `json:"currentHeight"`
	PointerY      float64 `json:"pointerY"`
}

type resizeMoveRequest struct {
	PointerY float64 `json:"pointerY"`
}

type resizeMoveResponse struct {
	Height float64   `json:"height"`
	End    time.Time `json:"end"`
}

type commitResponse struct {
	EventID   string `json:"eventId,omitempty"`
	Committed bool   `json:"committed"`
	Settled   bool   `json:"settled"`
}

type clickResponse struct {
	Opened bool           `json:"opened"`
	Editor *EditorRequest `json:"editor,omitempty"`
}

// loadedEvent finds the event a gesture starts on among the session's
// loaded week.
func loadedEvent(w http.ResponseWriter, r *http.Request, s *session, id string) (calendar.Event, bool) {
	ev, ok := s.orch.Event(id)
	if !ok {
		errors.NotFound(w, r, "event not loaded in this session")
		return calendar.Event{}, false
	}
	return ev, true
}

func (h *Handler) cellDay(w http.ResponseWriter, r *http.Request, req cellRequest) (time.Time, bool) {
	day, err := parseDay(req.Day, h.clock.Now().Location())
	if err != nil {
		errors.BadRequestError(w, r, err, err.Error())
		return time.Time{}, false
	}
	return day, true
}

// DragStart begins moving an event.
func (h *Handler) DragStart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req dragStartRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	ev, ok := loadedEvent(w, r, s, req.EventID)
	if !ok {
		return
	}
	if err := s.model.Machine().DragStart(ev, req.PointerY); err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DragOver updates the hover target and returns the snapped cell.
func (h *Handler) DragOver(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	day, ok := h.cellDay(w, r, req)
	if !ok {
		return
	}
	target, err := s.model.Machine().DragOver(day, req.Hour, req.OffsetY)
	if err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// Drop commits a drag.
func (h *Handler) Drop(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	day, ok := h.cellDay(w, r, req)
	if !ok {
		return
	}
	eventID := s.model.Machine().State().Event.ID
	p, err := s.model.Machine().Drop(context.WithoutCancel(r.Context()), day, req.Hour, req.OffsetY)
	h.respondCommit(w, r, eventID, p, err)
}

// DragEnd clears the drag state without committing.
func (h *Handler) DragEnd(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.model.Machine().DragEnd()
	w.WriteHeader(http.StatusNoContent)
}

// ResizeStart begins resizing an event from its bottom edge.
func (h *Handler) ResizeStart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req resizeStartRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	ev, ok := loadedEvent(w, r, s, req.EventID)
	if !ok {
		return
	}
	if err := s.model.Machine().ResizeStart(ev, req.CurrentHeight, req.PointerY); err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResizeMove returns the snapped live height and end time.
func (h *Handler) ResizeMove(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req resizeMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	height, err := s.model.Machine().ResizeMove(req.PointerY)
	if err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	end, _ := s.model.Machine().LiveEnd()
	writeJSON(w, http.StatusOK, resizeMoveResponse{Height: height, End: end})
}

// ResizeEnd commits a resize.
func (h *Handler) ResizeEnd(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	eventID := s.model.Machine().State().Event.ID
	p, err := s.model.Machine().ResizeEnd(context.WithoutCancel(r.Context()))
	h.respondCommit(w, r, eventID, p, err)
}

// CancelGesture abandons any active gesture.
func (h *Handler) CancelGesture(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.model.Machine().Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// respondCommit answers 202 while the update is in flight, or waits for it
// when the caller passed ?wait=1. A nil pending means nothing changed.
func (h *Handler) respondCommit(w http.ResponseWriter, r *http.Request, eventID string, p *gesture.Pending, err error) {
	if err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusOK, commitResponse{EventID: eventID})
		return
	}
	if r.URL.Query().Get("wait") != "1" {
		writeJSON(w, http.StatusAccepted, commitResponse{EventID: eventID, Committed: true})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), waitTimeout)
	defer cancel()
	if err := weekview.Wait(ctx, p); err != nil {
		if ctx.Err() != nil {
			h.logger.Warn("commit still pending", zap.String("event_id", eventID))
			writeJSON(w, http.StatusAccepted, commitResponse{EventID: eventID, Committed: true})
			return
		}
		errors.FromDomain(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse{EventID: eventID, Committed: true, Settled: true})
}

// CellClick asks for the create dialog at an hour cell.
func (h *Handler) CellClick(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req cellRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	day, ok := h.cellDay(w, r, req)
	if !ok {
		return
	}
	_, opened := s.model.CellClick(day, req.Hour)
	writeJSON(w, http.StatusOK, clickResponse{Opened: opened, Editor: s.takeEditor()})
}

// EventClick asks for the edit dialog unless the click follows a gesture.
func (h *Handler) EventClick(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	ev, ok := loadedEvent(w, r, s, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	ev = s.model.Overrides().Effective(ev)
	opened := s.model.EventClick(ev)
	writeJSON(w, http.StatusOK, clickResponse{Opened: opened, Editor: s.takeEditor()})
}
