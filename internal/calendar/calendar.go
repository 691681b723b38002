package calendar

import (
	"context"
	"time"
)

// Meeting is one upcoming calendar event, as reported by the calendar
// collaborator. ID is opaque and stable within a prefetch window.
type Meeting struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Calendar lists upcoming meetings. Implementations wrap an external
// calendar API and are wired in at daemon construction.
type Calendar interface {
	ListUpcoming(ctx context.Context, lookahead time.Duration, limit int) ([]Meeting, error)
}
