package ui

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/go-chi/chi/v5"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/http/errors"
)

type memberView struct {
	calendar.Member
	Color string `json:"color"`
}

// Members lists the workspace members with their assigned colors.
func (h *Handler) Members(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	members, err := o.LoadMembers(r.Context())
	if err != nil {
		errors.InternalError(w, r, err, "failed to load members")
		return
	}
	out := make([]memberView, 0, len(members))
	for _, m := range members {
		out = append(out, memberView{Member: m, Color: o.MemberColor(m.ID)})
	}
	writeJSON(w, http.StatusOK, out)
}

type memberRequest struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// SaveMember creates or renames a member of the assignee directory.
func (h *Handler) SaveMember(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	m := calendar.Member{
		ID:        strings.TrimSpace(chi.URLParam(r, "id")),
		Name:      strings.TrimSpace(req.Name),
		AvatarURL: strings.TrimSpace(req.AvatarURL),
	}
	if m.ID == "" || m.Name == "" {
		errors.BadRequestError(w, r, nil, "member id and name are required")
		return
	}
	if err := h.backend.UpsertMember(r.Context(), o.WorkspaceID(), m); err != nil {
		errors.InternalError(w, r, err, "failed to save member")
		return
	}
	if _, err := o.LoadMembers(r.Context()); err != nil {
		errors.LogError(r, "reload members", err)
	}
	writeJSON(w, http.StatusOK, memberView{Member: m, Color: o.MemberColor(m.ID)})
}

// Settings returns the workspace calendar preferences.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	s, err := o.LoadSettings(r.Context())
	if err != nil {
		errors.InternalError(w, r, err, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// SaveSettings replaces the workspace calendar preferences.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	o, ok := h.orchestrator(w, r)
	if !ok {
		return
	}
	s := o.Settings()
	if err := decodeJSON(r, &s); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	if err := validateSettings(s); err != nil {
		errors.BadRequestError(w, r, err, err.Error())
		return
	}
	if err := h.backend.SaveSettings(r.Context(), o.WorkspaceID(), s); err != nil {
		errors.InternalError(w, r, err, "failed to save settings")
		return
	}
	saved, err := o.LoadSettings(r.Context())
	if err != nil {
		errors.InternalError(w, r, err, "failed to reload settings")
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func validateSettings(s calendar.Settings) error {
	if s.WorkdayStartHour < 0 || s.WorkdayEndHour > 24 || s.WorkdayStartHour >= s.WorkdayEndHour {
		return fmt.Errorf("workday hours must satisfy 0 <= start < end <= 24")
	}
	if !s.DefaultEventType.Valid() {
		return fmt.Errorf("%w: %q", calendar.ErrInvalidEventType, s.DefaultEventType)
	}
	return nil
}

type rangeResponse struct {
	View   string         `json:"view"`
	Anchor time.Time      `json:"anchor"`
	Range  calendar.Range `json:"range"`
}

type navigateRequest struct {
	Step string `json:"step"`
	View string `json:"view"`
	Date string `json:"date"`
}

func rangeOf(o *calendar.Orchestrator) rangeResponse {
	return rangeResponse{View: string(o.View()), Anchor: o.Anchor(), Range: o.Range()}
}

// sessionByQuery resolves ?session= for the navigation routes.
func (h *Handler) sessionByQuery(w http.ResponseWriter, r *http.Request) (*session, bool) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return nil, false
	}
	s, ok := h.sessions.get(r.URL.Query().Get("session"))
	if !ok || s.workspaceID != wsID {
		errors.NotFound(w, r, "grid session not found")
		return nil, false
	}
	s.touch(h.clock.Now())
	return s, true
}

// Range reports a session's view mode, anchor and visible interval.
func (h *Handler) Range(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionByQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rangeOf(s.orch))
}

// Navigate moves a session's anchor: to an explicit date, or by a step of
// "next", "prev" or "today". An optional view switches week and month.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionByQuery(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if err := decodeJSON(r, &req); err != nil {
		errors.BadRequestError(w, r, err, "invalid request body")
		return
	}
	if req.View != "" {
		mode, err := calendar.ParseViewMode(req.View)
		if err != nil {
			errors.BadRequestError(w, r, err, err.Error())
			return
		}
		s.orch.SetView(mode)
	}
	switch {
	case req.Date != "":
		day, err := parseDay(req.Date, h.clock.Now().Location())
		if err != nil {
			errors.BadRequestError(w, r, err, err.Error())
			return
		}
		s.orch.GoTo(day)
	case req.Step != "":
		if err := s.orch.Navigate(req.Step); err != nil {
			errors.BadRequestError(w, r, err, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, rangeOf(s.orch))
}

// ExportICS renders the events in [start, end) as an iCalendar feed.
func (h *Handler) ExportICS(w http.ResponseWriter, r *http.Request) {
	wsID, ok := workspaceID(w, r)
	if !ok {
		return
	}
	start, end, err := parseRange(r, h.clock.Now())
	if err != nil {
		errors.BadRequestError(w, r, err, err.Error())
		return
	}
	events, err := h.backend.FetchEvents(r.Context(), wsID, start, end, calendar.Filter{})
	if err != nil {
		errors.InternalError(w, r, err, "failed to export events")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="crmcal.ics"`)
	_, _ = w.Write([]byte(buildICS(events, h.clock.Now())))
}

func buildICS(events []calendar.Event, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//crmcal//calendar export//EN")
	for _, ev := range events {
		ve := cal.AddEvent(ev.ID + "@crmcal")
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.StartTime)
		ve.SetEndAt(ev.EndTime)
		ve.SetSummary(ev.Title)
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if !ev.CreatedAt.IsZero() {
			ve.SetCreatedTime(ev.CreatedAt)
		}
		if !ev.UpdatedAt.IsZero() {
			ve.SetModifiedAt(ev.UpdatedAt)
		}
		ve.SetStatus(ical.ObjectStatus(strings.ToUpper(string(ev.Status))))
		ve.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(ev.Type)))
		if ev.CancelReason != "" {
			ve.SetDescription("Cancelled: " + ev.CancelReason)
		}
	}
	return cal.Serialize()
}
