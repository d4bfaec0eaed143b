// Package errors writes JSON error responses and logs them with the chi
// request id.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/gesture"
)

// Body is the JSON error envelope.
type Body struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func logger(r *http.Request) *zap.Logger {
	l := zap.L().Named("http")
	if id := middleware.GetReqID(r.Context()); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	return l
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func write(w http.ResponseWriter, r *http.Request, status int, msg string) {
	WriteJSON(w, status, Body{Error: msg, RequestID: middleware.GetReqID(r.Context())})
}

// InternalError logs err and returns a generic 500.
func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logger(r).Error(message, zap.Error(err), zap.String("path", r.URL.Path))
	write(w, r, http.StatusInternalServerError, "internal server error")
}

// BadRequestError logs err at warn level and returns clientMessage.
func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	logger(r).Warn("bad request", zap.Error(err), zap.String("path", r.URL.Path))
	write(w, r, http.StatusBadRequest, clientMessage)
}

// NotFound returns a 404 with message.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	write(w, r, http.StatusNotFound, message)
}

// FromDomain maps calendar and gesture errors to statuses. Anything it
// does not recognize is a 500.
func FromDomain(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case stderrors.Is(err, calendar.ErrNotFound):
		write(w, r, http.StatusNotFound, "event not found")
	case stderrors.Is(err, calendar.ErrTitleRequired),
		stderrors.Is(err, calendar.ErrInvalidRange),
		stderrors.Is(err, calendar.ErrInvalidEventType),
		stderrors.Is(err, gesture.ErrInvalidRange),
		stderrors.Is(err, gesture.ErrInvalidCell):
		BadRequestError(w, r, err, err.Error())
	case stderrors.Is(err, calendar.ErrInvalidStatus),
		stderrors.Is(err, calendar.ErrReadOnly),
		stderrors.Is(err, gesture.ErrGestureActive),
		stderrors.Is(err, gesture.ErrNotDragging),
		stderrors.Is(err, gesture.ErrNotResizing):
		logger(r).Info("conflict", zap.Error(err))
		write(w, r, http.StatusConflict, err.Error())
	case stderrors.Is(err, calendar.ErrNoWorkspace):
		write(w, r, http.StatusBadRequest, "workspace required")
	default:
		InternalError(w, r, err, "request failed")
	}
}

// LogError logs err with the request id.
func LogError(r *http.Request, message string, err error) {
	logger(r).Error(message, zap.Error(err))
}
