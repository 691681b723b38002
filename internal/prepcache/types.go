package prepcache

import (
	"encoding/json"
	"time"
)

// SourceName identifies one of the six fixed prep data categories.
type SourceName string

const (
	SourceJira       SourceName = "jira"
	SourceConfluence SourceName = "confluence"
	SourceSlack      SourceName = "slack"
	SourceGmail      SourceName = "gmail"
	SourceDrive      SourceName = "drive"
	SourceSummary    SourceName = "summary"
)

// SourceOrder is the fixed refresh order within a meeting. Summary is last
// because its fetch reads the other five slots as input context.
var SourceOrder = []SourceName{
	SourceJira,
	SourceConfluence,
	SourceSlack,
	SourceGmail,
	SourceDrive,
	SourceSummary,
}

// IsSource reports whether name is one of the six known sources.
func IsSource(name SourceName) bool {
	for _, s := range SourceOrder {
		if s == name {
			return true
		}
	}
	return false
}

// SourceSlot holds one source's cached payload. Data is opaque to the
// cache; nil Data means the slot was never successfully populated.
type SourceSlot struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// MeetingInfo is the metadata shared by the per-source fetchers.
type MeetingInfo struct {
	Title       string    `json:"title"`
	StartTime   time.Time `json:"start_time"`
	Attendees   []string  `json:"attendees,omitempty"`
	Description string    `json:"description,omitempty"`
}

// MeetingEntry is the cached state for one meeting. All six source slots
// exist once the entry is created, possibly empty.
type MeetingEntry struct {
	Sources     map[SourceName]*SourceSlot `json:"sources"`
	MeetingInfo *MeetingInfo               `json:"meeting_info,omitempty"`
}

func newMeetingEntry() *MeetingEntry {
	e := &MeetingEntry{Sources: make(map[SourceName]*SourceSlot, len(SourceOrder))}
	for _, s := range SourceOrder {
		e.Sources[s] = &SourceSlot{}
	}
	return e
}
