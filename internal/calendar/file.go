package calendar

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"
)

// FileCalendar reads upcoming meetings from a JSON file maintained by an
// external sync job. A missing file is an empty calendar, not an error;
// the file is re-read on every listing so edits show up on the next
// prefetch cycle.
type FileCalendar struct {
	path string
	now  func() time.Time
}

func NewFileCalendar(path string) *FileCalendar {
	return &FileCalendar{path: path, now: time.Now}
}

func (c *FileCalendar) ListUpcoming(ctx context.Context, lookahead time.Duration, limit int) ([]Meeting, error) {
	content, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var all []Meeting
	if err := json.Unmarshal(content, &all); err != nil {
		return nil, err
	}

	now := c.now()
	horizon := now.Add(lookahead)

	var upcoming []Meeting
	for _, m := range all {
		if m.ID == "" || m.StartTime.IsZero() {
			continue
		}
		if m.StartTime.Before(now) || m.StartTime.After(horizon) {
			continue
		}
		upcoming = append(upcoming, m)
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartTime.Before(upcoming[j].StartTime)
	})
	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming, nil
}
