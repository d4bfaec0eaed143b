package store

import "github.com/jw6ventures/crmcal/internal/calendar"

// ErrNotFound indicates a missing event or one outside the caller's workspace.
var ErrNotFound = calendar.ErrNotFound
