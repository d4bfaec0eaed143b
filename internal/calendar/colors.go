package calendar

import "sync"

// MemberPalette is the fixed set of colors handed out to assignees.
var MemberPalette = []string{
	"#2563eb",
	"#16a34a",
	"#d97706",
	"#db2777",
	"#7c3aed",
	"#0891b2",
	"#dc2626",
	"#4b5563",
}

// ColorAssigner gives each member a stable color for the life of the
// session, round-robin from MemberPalette in order of first sight.
type ColorAssigner struct {
	mu      sync.Mutex
	palette []string
	byID    map[string]string
	next    int
}

func NewColorAssigner(palette []string) *ColorAssigner {
	if len(palette) == 0 {
		palette = MemberPalette
	}
	return &ColorAssigner{palette: palette, byID: make(map[string]string)}
}

// Color returns the member's color, assigning the next palette entry the
// first time the member is seen.
func (c *ColorAssigner) Color(memberID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if color, ok := c.byID[memberID]; ok {
		return color
	}
	color := c.palette[c.next%len(c.palette)]
	c.next++
	c.byID[memberID] = color
	return color
}
