package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/gesture"
)

func TestFromDomain(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{calendar.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("update event e1: %w", calendar.ErrNotFound), http.StatusNotFound},
		{calendar.ErrTitleRequired, http.StatusBadRequest},
		{calendar.ErrInvalidRange, http.StatusBadRequest},
		{fmt.Errorf("%w: %q", calendar.ErrInvalidEventType, "party"), http.StatusBadRequest},
		{calendar.ErrInvalidStatus, http.StatusConflict},
		{gesture.ErrReadOnly, http.StatusConflict},
		{fmt.Errorf("update event e1: %w", calendar.ErrReadOnly), http.StatusConflict},
		{fmt.Errorf("%w: %d", gesture.ErrInvalidCell, 30), http.StatusBadRequest},
		{gesture.ErrGestureActive, http.StatusConflict},
		{gesture.ErrNotDragging, http.StatusConflict},
		{calendar.ErrNoWorkspace, http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromDomain(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body Body
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body.Error == "" {
				t.Fatalf("body = %+v, err = %v", body, err)
			}
		})
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("password=hunter2"), "db failed")
	var body Body
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Error != "internal server error" {
		t.Fatalf("error leaked: %q", body.Error)
	}
}
