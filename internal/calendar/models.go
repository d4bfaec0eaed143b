package calendar

import (
	"fmt"
	"strings"
	"time"
)

// EventType is the closed set of CRM activity kinds an event can have.
type EventType string

const (
	TypeMeeting  EventType = "meeting"
	TypeCall     EventType = "call"
	TypeDemo     EventType = "demo"
	TypeReminder EventType = "reminder"
	TypeAction   EventType = "action"
	TypeTask     EventType = "task"
)

type typeDefaults struct {
	color    string
	icon     string
	duration time.Duration
}

var eventTypes = map[EventType]typeDefaults{
	TypeMeeting:  {color: "#3b82f6", icon: "users", duration: time.Hour},
	TypeCall:     {color: "#10b981", icon: "phone", duration: 30 * time.Minute},
	TypeDemo:     {color: "#8b5cf6", icon: "presentation", duration: 45 * time.Minute},
	TypeReminder: {color: "#f59e0b", icon: "bell", duration: 15 * time.Minute},
	TypeAction:   {color: "#ef4444", icon: "zap", duration: 30 * time.Minute},
	TypeTask:     {color: "#64748b", icon: "check-square", duration: 30 * time.Minute},
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Color is the default display color for the type.
func (t EventType) Color() string { return eventTypes[t].color }

// Icon is the default icon name for the type.
func (t EventType) Icon() string { return eventTypes[t].icon }

// DefaultDuration is the length a newly created event of this type gets
// when no end time is given.
func (t EventType) DefaultDuration() time.Duration {
	if d, ok := eventTypes[t]; ok {
		return d.duration
	}
	return time.Hour
}

// ParseEventType parses a lower-case event type name.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, s)
	}
	return t, nil
}

// Status is the lifecycle state of an event.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusTentative Status = "tentative"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ReadOnly reports whether events in this status are locked against drag
// and resize.
func (s Status) ReadOnly() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusTentative, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Event is the grid's read-only projection of a remote calendar event.
type Event struct {
	ID           string    `json:"id"`
	WorkspaceID  string    `json:"workspaceId"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	Title        string    `json:"title"`
	Type         EventType `json:"eventType"`
	Status       Status    `json:"status"`
	Location     string    `json:"location,omitempty"`
	AssignedTo   *string   `json:"assignedTo,omitempty"`
	LeadRef      *string   `json:"leadRef,omitempty"`
	CancelReason string    `json:"cancelReason,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Duration is EndTime minus StartTime, clamped at zero for malformed records.
func (e Event) Duration() time.Duration {
	if d := e.EndTime.Sub(e.StartTime); d > 0 {
		return d
	}
	return 0
}

// HasReminder reports whether the event is linked to a lead and therefore
// eligible for reminder scheduling.
func (e Event) HasReminder() bool {
	return e.LeadRef != nil && *e.LeadRef != ""
}

// Draft carries the fields for a new event.
type Draft struct {
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Title      string    `json:"title"`
	Type       EventType `json:"eventType"`
	Status     Status    `json:"status,omitempty"`
	Location   string    `json:"location,omitempty"`
	AssignedTo *string   `json:"assignedTo,omitempty"`
	LeadRef    *string   `json:"leadRef,omitempty"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Title        *string    `json:"title,omitempty"`
	Type         *EventType `json:"eventType,omitempty"`
	Status       *Status    `json:"status,omitempty"`
	Location     *string    `json:"location,omitempty"`
	AssignedTo   *string    `json:"assignedTo,omitempty"`
	LeadRef      *string    `json:"leadRef,omitempty"`
	CancelReason *string    `json:"cancelReason,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.StartTime == nil && p.EndTime == nil && p.Title == nil && p.Type == nil &&
		p.Status == nil && p.Location == nil && p.AssignedTo == nil && p.LeadRef == nil &&
		p.CancelReason == nil
}

// TimesOnly reports whether the patch changes start or end and nothing else.
func (p Patch) TimesOnly() bool {
	return (p.StartTime != nil || p.EndTime != nil) &&
		Patch{Title: p.Title, Type: p.Type, Status: p.Status, Location: p.Location,
			AssignedTo: p.AssignedTo, LeadRef: p.LeadRef, CancelReason: p.CancelReason}.Empty()
}

// ApplyTo returns a copy of e with the patch applied.
func (p Patch) ApplyTo(e Event) Event {
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		e.EndTime = *p.EndTime
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.AssignedTo != nil {
		if *p.AssignedTo == "" {
			e.AssignedTo = nil
		} else {
			v := *p.AssignedTo
			e.AssignedTo = &v
		}
	}
	if p.LeadRef != nil {
		if *p.LeadRef == "" {
			e.LeadRef = nil
		} else {
			v := *p.LeadRef
			e.LeadRef = &v
		}
	}
	if p.CancelReason != nil {
		e.CancelReason = *p.CancelReason
	}
	return e
}

// Filter narrows an event fetch.
type Filter struct {
	AssignedTo *string
}

// Member is a workspace member that events can be assigned to.
type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Settings are per-workspace calendar preferences.
type Settings struct {
	WorkdayStartHour int       `json:"workdayStartHour"`
	WorkdayEndHour   int       `json:"workdayEndHour"`
	DefaultEventType EventType `json:"defaultEventType"`
}

// DefaultSettings is used when a workspace has not stored preferences.
func DefaultSettings() Settings {
	return Settings{WorkdayStartHour: 8, WorkdayEndHour: 18, DefaultEventType: TypeMeeting}
}
