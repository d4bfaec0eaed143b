package ui

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/http/errors"
)

// orchestrator resolves the caller's shared workspace orchestrator.
func (h *Handler) orchestrator(w http.ResponseWriter, r *http.Request) (*calendar.Orchestrator, bool) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return nil, false
	}
	o, err := h.workspace(r.Context(), wsID)
	if err != nil {
		errors.InternalError(w, r, err, "failed to load workspace")
		return nil, false
	}
	return o, true
}

// ListEvents returns events starting in [start, end), optionally filtered
// by assignee.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}
	start, end, err := parseRange(r, h.clock.Now())
	if err != nil {
		errors.BadRequestError(w, r, err, err.Error())
		return
	}
	var filter calendar.Filter
	if a := strings.TrimSpace(r.URL.Query().Get("assignedTo")); a != "" {
		filter.AssignedTo = &a
	}
	events, err := h.backend.FetchEvents(r.Context(), wsID, start, end, filter)
	if err != nil {
		errors.InternalError(w, r, err, "failed to list events")
		return
	}
	if events == nil {
		events = []calendar.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// CreateEvent persists a new event from the edit dialog.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	var draft calendar.Draft
	if err := decodeJSON(r, &draft); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	ev, err := o.CreateEvent(r.Context(), draft)
	if err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// UpdateEvent applies a partial update.
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	var patch calendar.Patch
	if err := decodeJSON(r, &patch); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.reload(r, o, id); err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	if err := o.UpdateEvent(r.Context(), id, patch); err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	h.respondEvent(w, r, o.WorkspaceID(), id)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelEvent soft-deletes an event with an optional reason.
func (h *Handler) CancelEvent(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")
	if err := o.CancelEvent(r.Context(), id, strings.TrimSpace(req.Reason)); err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	h.respondEvent(w, r, o.WorkspaceID(), id)
}

// ResumeEvent, ConfirmEvent and CompleteEvent move an event through its
// lifecycle.
func (h *Handler) ResumeEvent(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*calendar.Orchestrator).ResumeEvent)
}

func (h *Handler) ConfirmEvent(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*calendar.Orchestrator).ConfirmEvent)
}

func (h *Handler) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*calendar.Orchestrator).CompleteEvent)
}

type transitionFunc func(o *calendar.Orchestrator, ctx context.Context, id string) error

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.reload(r, o, id); err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	if err := fn(o, r.Context(), id); err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	h.respondEvent(w, r, o.WorkspaceID(), id)
}

// reload refreshes the week around the stored copy of id, so updates
// validate against current times and disallowed transitions are rejected.
// Grid sessions may have moved the event since it was last loaded here.
func (h *Handler) reload(r *http.Request, o *calendar.Orchestrator, id string) error {
	ev, err := h.backend.GetEvent(r.Context(), o.WorkspaceID(), id)
	if err != nil {
		return err
	}
	o.GoTo(ev.StartTime)
	return o.Refresh(r.Context())
}

// DeleteEvent permanently removes an event.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	if err := o.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		errors.FromDomain(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondEvent(w http.ResponseWriter, r *http.Request, wsID, id string) {
	ev, err := h.backend.GetEvent(r.Context(), wsID, id)
	if err != nil {
		errors.FromDomain(w, r, fmt.Errorf("reload event: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
