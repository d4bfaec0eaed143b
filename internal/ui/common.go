package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/http/errors"
	"github.com/jw6ventures/crmcal/internal/workspace"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

// decodeJSON reads a single JSON object from the request body. An empty
// body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// parseDay parses a YYYY-MM-DD date in loc.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// parseInstant accepts either an RFC 3339 timestamp or a plain date.
func parseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return parseDay(s, loc)
}

// parseRange reads the start and end query parameters, defaulting to the
// week that contains now.
func parseRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	q := r.URL.Query()
	loc := now.Location()
	week := calendar.RangeFor(calendar.ViewWeek, now)
	start, end := week.Start, week.End
	if v := q.Get("start"); v != "" {
		t, err := parseInstant(v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
		if q.Get("end") == "" {
			end = start.AddDate(0, 0, 7)
		}
	}
	if v := q.Get("end"); v != "" {
		t, err := parseInstant(v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end must be after start")
	}
	return start, end, nil
}

// workspaceID reads the workspace set by workspace.Middleware, answering
// 400 when it is missing.
func workspaceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := workspace.WorkspaceIDFromContext(r.Context())
	if !ok {
		errors.WriteJSON(w, http.StatusBadRequest, errors.Body{Error: "missing " + workspace.HeaderWorkspaceID + " header"})
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	errors.WriteJSON(w, status, v)
}
