// Package optimistic holds pending time changes that mask the remote value
// of an event until its mutation settles.
package optimistic

import (
	"sync"
	"time"

	"github.com/jw6ventures/crmcal/internal/calendar"
)

// Override is an in-flight start/end pair for one event.
type Override struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	// seq tells apart overrides with equal times.
	seq uint64
}

// Cache maps event ids to at most one override each.
type Cache struct {
	mu        sync.RWMutex
	overrides map[string]Override
	seq       uint64
}

func New() *Cache {
	return &Cache{overrides: make(map[string]Override)}
}

// Set installs or replaces the override for id and returns the stored
// value, which ClearIf accepts.
func (c *Cache) Set(id string, o Override) Override {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	o.seq = c.seq
	c.overrides[id] = o
	return o
}

// Get returns the override for id, if any.
func (c *Cache) Get(id string) (Override, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.overrides[id]
	return o, ok
}

// Clear removes the override for id. Clearing a missing id is a no-op.
func (c *Cache) Clear(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.overrides, id)
}

// ClearIf removes the override for id only if it is still o, as returned
// by Set. It reports whether it removed anything.
func (c *Cache) ClearIf(id string, o Override) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.overrides[id]; ok && cur == o {
		delete(c.overrides, id)
		return true
	}
	return false
}

// Len returns the number of pending overrides.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.overrides)
}

// Effective returns e with any pending override merged over its times.
func (c *Cache) Effective(e calendar.Event) calendar.Event {
	if o, ok := c.Get(e.ID); ok {
		e.StartTime = o.StartTime
		e.EndTime = o.EndTime
	}
	return e
}

// EffectiveAll applies Effective to every event, returning a new slice.
func (c *Cache) EffectiveAll(events []calendar.Event) []calendar.Event {
	out := make([]calendar.Event, len(events))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i, e := range events {
		if o, ok := c.overrides[e.ID]; ok {
			e.StartTime = o.StartTime
			e.EndTime = o.EndTime
		}
		out[i] = e
	}
	return out
}
