package calendar

import "errors"

var (
	// ErrNotFound indicates the event is not in the loaded range or store.
	ErrNotFound = errors.New("event not found")
	// ErrTitleRequired is returned when persisting an event without a title.
	ErrTitleRequired = errors.New("title is required")
	// ErrInvalidRange is returned when an event would end at or before it starts.
	ErrInvalidRange = errors.New("end time must be after start time")
	// ErrInvalidEventType is returned for unknown event types.
	ErrInvalidEventType = errors.New("invalid event type")
	// ErrInvalidStatus is returned for unknown or disallowed status transitions.
	ErrInvalidStatus = errors.New("invalid status transition")
	// ErrReadOnly is returned when moving or resizing a cancelled or completed event.
	ErrReadOnly = errors.New("event is read-only")
	// ErrNoWorkspace is returned when the orchestrator has no workspace bound.
	ErrNoWorkspace = errors.New("workspace is required")
)
